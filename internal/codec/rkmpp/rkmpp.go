//go:build linux && rkmpp

package rkmpp

/*
#cgo pkg-config: rockchip_mpp
#include <stdlib.h>
#include <rockchip/rk_mpi.h>
#include <rockchip/mpp_buffer.h>
#include <rockchip/mpp_frame.h>
#include <rockchip/mpp_packet.h>
#include <rockchip/mpp_meta.h>
#include <rockchip/rk_venc_cfg.h>
#include <rockchip/rk_venc_ref.h>

// MppApi exposes function pointers and several buffer calls are macros, so
// both need plain C entry points for cgo.

static MPP_RET hw_control(MppApi *mpi, MppCtx ctx, MpiCmd cmd, MppParam param) {
	return mpi->control(ctx, cmd, param);
}

static MPP_RET hw_set_blocking(MppApi *mpi, MppCtx ctx) {
	MppPollType timeout = MPP_POLL_BLOCK;
	return mpi->control(ctx, MPP_SET_OUTPUT_TIMEOUT, &timeout);
}

static MPP_RET hw_set_sei(MppApi *mpi, MppCtx ctx, int mode) {
	MppEncSeiMode sei = (MppEncSeiMode)mode;
	return mpi->control(ctx, MPP_ENC_SET_SEI_CFG, &sei);
}

static MPP_RET hw_set_header(MppApi *mpi, MppCtx ctx, int mode) {
	MppEncHeaderMode header = (MppEncHeaderMode)mode;
	return mpi->control(ctx, MPP_ENC_SET_HEADER_MODE, &header);
}

static MPP_RET hw_put_frame(MppApi *mpi, MppCtx ctx, MppFrame frame) {
	return mpi->encode_put_frame(ctx, frame);
}

static MPP_RET hw_get_packet(MppApi *mpi, MppCtx ctx, MppPacket *packet) {
	return mpi->encode_get_packet(ctx, packet);
}

static MPP_RET hw_reset(MppApi *mpi, MppCtx ctx) {
	return mpi->reset(ctx);
}

static MPP_RET hw_group_get(MppBufferGroup *group) {
	return mpp_buffer_group_get_internal(group, MPP_BUFFER_TYPE_DRM);
}

static MPP_RET hw_buffer_get(MppBufferGroup group, MppBuffer *buf, size_t size) {
	return mpp_buffer_get(group, buf, size);
}

static MPP_RET hw_buffer_put(MppBuffer buf) {
	return mpp_buffer_put(buf);
}

static void *hw_buffer_ptr(MppBuffer buf) {
	return mpp_buffer_get_ptr(buf);
}

static size_t hw_buffer_size(MppBuffer buf) {
	return mpp_buffer_get_size(buf);
}

static MPP_RET hw_attach_output(MppFrame frame, MppBuffer out) {
	MppPacket packet = NULL;
	MPP_RET ret = mpp_packet_init_with_buffer(&packet, out);
	if (ret)
		return ret;
	mpp_packet_set_length(packet, 0);
	return mpp_meta_set_packet(mpp_frame_get_meta(frame), KEY_OUTPUT_PACKET, packet);
}

static int hw_meta_s32(MppPacket packet, MppMetaKey key, RK_S32 *val) {
	if (!mpp_packet_has_meta(packet))
		return -1;
	return mpp_meta_get_s32(mpp_packet_get_meta(packet), key, val);
}
*/
import "C"

import (
	"fmt"
	"log/slog"
	"unsafe"

	"github.com/smazurov/hwvideo/internal/codec"
	"github.com/smazurov/hwvideo/internal/logging"
)

// Backend opens MPP encoder contexts backed by DRM buffers.
type Backend struct{}

// New returns the hardware backend.
func New() *Backend {
	return &Backend{}
}

// Available reports whether the hardware backend was compiled in.
func Available() bool { return true }

// Name implements codec.Backend.
func (b *Backend) Name() string { return Name }

func check(op string, ret C.MPP_RET) error {
	if ret != C.MPP_OK {
		return &codec.StatusError{Op: op, Status: int(ret)}
	}
	return nil
}

// NewBufferGroup implements codec.Backend.
func (b *Backend) NewBufferGroup() (codec.BufferGroup, error) {
	var g C.MppBufferGroup
	if err := check("mpp_buffer_group_get", C.hw_group_get(&g)); err != nil {
		return nil, err
	}
	return &bufferGroup{group: g}, nil
}

type bufferGroup struct {
	group C.MppBufferGroup
}

func (g *bufferGroup) Get(size int) (codec.Buffer, error) {
	var buf C.MppBuffer
	if err := check("mpp_buffer_get", C.hw_buffer_get(g.group, &buf, C.size_t(size))); err != nil {
		return nil, err
	}
	ptr := C.hw_buffer_ptr(buf)
	if ptr == nil {
		C.hw_buffer_put(buf)
		return nil, fmt.Errorf("mpp_buffer_get_ptr: buffer of %d bytes not mapped", size)
	}
	n := int(C.hw_buffer_size(buf))
	return &buffer{buf: buf, data: unsafe.Slice((*byte)(ptr), n)}, nil
}

func (g *bufferGroup) Close() error {
	if g.group == nil {
		return nil
	}
	ret := C.mpp_buffer_group_put(g.group)
	g.group = nil
	return check("mpp_buffer_group_put", ret)
}

type buffer struct {
	buf  C.MppBuffer
	data []byte
}

func (b *buffer) Bytes() []byte { return b.data }

func (b *buffer) Release() error {
	if b.buf == nil {
		return nil
	}
	ret := C.hw_buffer_put(b.buf)
	b.buf = nil
	b.data = nil
	return check("mpp_buffer_put", ret)
}

// Open implements codec.Backend.
func (b *Backend) Open(coding codec.CodingType) (codec.Encoder, error) {
	e := &encoder{logger: logging.GetLogger("rkmpp").With("coding", coding.String())}

	if err := check("mpp_create", C.mpp_create(&e.ctx, &e.mpi)); err != nil {
		return nil, err
	}
	if err := check("set_output_timeout", C.hw_set_blocking(e.mpi, e.ctx)); err != nil {
		_ = e.destroy()
		return nil, err
	}
	if err := check("mpp_init", C.mpp_init(e.ctx, C.MPP_CTX_ENC, C.MppCodingType(coding))); err != nil {
		_ = e.destroy()
		return nil, err
	}
	if err := check("mpp_enc_cfg_init", C.mpp_enc_cfg_init(&e.cfg)); err != nil {
		_ = e.destroy()
		return nil, err
	}
	if err := check("get_cfg", C.hw_control(e.mpi, e.ctx, C.MPP_ENC_GET_CFG, C.MppParam(e.cfg))); err != nil {
		_ = e.destroy()
		return nil, err
	}
	return e, nil
}

type encoder struct {
	ctx    C.MppCtx
	mpi    *C.MppApi
	cfg    C.MppEncCfg
	logger *slog.Logger
}

func (e *encoder) SetConfig(cfg *codec.Config) error {
	for _, f := range cfg.Fields() {
		key := C.CString(f.Key)
		ret := C.mpp_enc_cfg_set_s32(e.cfg, key, C.RK_S32(f.Value))
		C.free(unsafe.Pointer(key))
		if ret != C.MPP_OK {
			return &codec.StatusError{Op: "set " + f.Key, Status: int(ret)}
		}
	}
	return check("set_cfg", C.hw_control(e.mpi, e.ctx, C.MPP_ENC_SET_CFG, C.MppParam(e.cfg)))
}

func (e *encoder) SetSEIMode(mode codec.SEIMode) error {
	return check("set_sei_cfg", C.hw_set_sei(e.mpi, e.ctx, C.int(codec.SEIModeValue(mode))))
}

func (e *encoder) SetHeaderMode(mode codec.HeaderMode) error {
	return check("set_header_mode", C.hw_set_header(e.mpi, e.ctx, C.int(codec.HeaderModeValue(mode))))
}

func (e *encoder) SetRefConfig(ref *codec.RefConfig) error {
	var rc C.MppEncRefCfg
	if err := check("mpp_enc_ref_cfg_init", C.mpp_enc_ref_cfg_init(&rc)); err != nil {
		return err
	}
	defer C.mpp_enc_ref_cfg_deinit(&rc)

	lt := make([]C.MppEncRefLtFrmCfg, len(ref.LongTerm))
	for i, r := range ref.LongTerm {
		lt[i].lt_idx = C.RK_S32(r.Index)
		lt[i].temporal_id = C.RK_S32(r.TemporalID)
		lt[i].ref_mode = C.MppEncRefMode(r.Mode)
		lt[i].ref_arg = C.RK_S32(r.Arg)
		lt[i].lt_gap = C.RK_S32(r.Gap)
		lt[i].lt_delay = C.RK_S32(r.Delay)
	}
	st := make([]C.MppEncRefStFrmCfg, len(ref.ShortTerm))
	for i, r := range ref.ShortTerm {
		if r.NonRef {
			st[i].is_non_ref = 1
		}
		st[i].temporal_id = C.RK_S32(r.TemporalID)
		st[i].ref_mode = C.MppEncRefMode(r.Mode)
		st[i].ref_arg = C.RK_S32(r.Arg)
		st[i].repeat = C.RK_S32(r.Repeat)
	}

	if err := check("ref_cfg_set_cfg_cnt", C.mpp_enc_ref_cfg_set_cfg_cnt(rc, C.RK_S32(len(lt)), C.RK_S32(len(st)))); err != nil {
		return err
	}
	if len(lt) > 0 {
		if err := check("ref_cfg_add_lt_cfg", C.mpp_enc_ref_cfg_add_lt_cfg(rc, C.RK_S32(len(lt)), &lt[0])); err != nil {
			return err
		}
	}
	if len(st) > 0 {
		if err := check("ref_cfg_add_st_cfg", C.mpp_enc_ref_cfg_add_st_cfg(rc, C.RK_S32(len(st)), &st[0])); err != nil {
			return err
		}
	}
	if err := check("ref_cfg_check", C.mpp_enc_ref_cfg_check(rc)); err != nil {
		return err
	}
	return check("set_ref_cfg", C.hw_control(e.mpi, e.ctx, C.MPP_ENC_SET_REF_CFG, C.MppParam(rc)))
}

func (e *encoder) RequestIDR() error {
	return check("set_idr_frame", C.hw_control(e.mpi, e.ctx, C.MPP_ENC_SET_IDR_FRAME, nil))
}

func (e *encoder) PutFrame(pic *codec.Picture) error {
	in, ok := pic.Input.(*buffer)
	if !ok {
		return fmt.Errorf("rkmpp: input buffer %T not allocated by this backend", pic.Input)
	}
	out, ok := pic.Output.(*buffer)
	if !ok {
		return fmt.Errorf("rkmpp: output buffer %T not allocated by this backend", pic.Output)
	}

	var f C.MppFrame
	if err := check("mpp_frame_init", C.mpp_frame_init(&f)); err != nil {
		return err
	}
	defer C.mpp_frame_deinit(&f)

	C.mpp_frame_set_width(f, C.RK_U32(pic.Width))
	C.mpp_frame_set_height(f, C.RK_U32(pic.Height))
	C.mpp_frame_set_hor_stride(f, C.RK_U32(pic.HorStride))
	C.mpp_frame_set_ver_stride(f, C.RK_U32(pic.VerStride))
	C.mpp_frame_set_fmt(f, C.MppFrameFormat(pic.Format))
	eos := C.RK_U32(0)
	if pic.EOS {
		eos = 1
	}
	C.mpp_frame_set_eos(f, eos)
	C.mpp_frame_set_buffer(f, in.buf)

	if err := check("attach_output_packet", C.hw_attach_output(f, out.buf)); err != nil {
		return err
	}
	return check("encode_put_frame", C.hw_put_frame(e.mpi, e.ctx, f))
}

func (e *encoder) GetPacket() (*codec.Packet, error) {
	var p C.MppPacket
	if err := check("encode_get_packet", C.hw_get_packet(e.mpi, e.ctx, &p)); err != nil {
		return nil, err
	}
	if p == nil {
		return nil, nil
	}
	defer C.mpp_packet_deinit(&p)

	pkt := &codec.Packet{
		Data:      C.GoBytes(C.mpp_packet_get_pos(p), C.int(C.mpp_packet_get_length(p))),
		EOS:       C.mpp_packet_get_eos(p) != 0,
		Partition: C.mpp_packet_is_partition(p) != 0,
		EOI:       C.mpp_packet_is_eoi(p) != 0,
	}

	meta := &codec.PacketMeta{TemporalID: -1, LongTermIdx: -1, AverageQP: -1}
	var v C.RK_S32
	if C.hw_meta_s32(p, C.KEY_TEMPORAL_ID, &v) == 0 {
		meta.TemporalID, meta.HasTemporal = int(v), true
	}
	if C.hw_meta_s32(p, C.KEY_LONG_REF_IDX, &v) == 0 {
		meta.LongTermIdx, meta.HasLongTerm = int(v), true
	}
	if C.hw_meta_s32(p, C.KEY_ENC_AVERAGE_QP, &v) == 0 {
		meta.AverageQP, meta.HasAverageQP = int(v), true
	}
	if meta.HasTemporal || meta.HasLongTerm || meta.HasAverageQP {
		pkt.Meta = meta
	}
	return pkt, nil
}

func (e *encoder) Reset() error {
	if e.ctx == nil {
		return nil
	}
	return check("reset", C.hw_reset(e.mpi, e.ctx))
}

func (e *encoder) Close() error {
	return e.destroy()
}

// destroy releases the codec handle before the config it was set from.
func (e *encoder) destroy() error {
	var err error
	if e.ctx != nil {
		err = check("mpp_destroy", C.mpp_destroy(e.ctx))
		e.ctx = nil
		e.mpi = nil
	}
	if e.cfg != nil {
		C.mpp_enc_cfg_deinit(e.cfg)
		e.cfg = nil
	}
	e.logger.Debug("Context destroyed")
	return err
}
