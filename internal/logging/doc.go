// Package logging hands out per-module slog loggers for the encoder, display
// and CLI code, routed to the systemd journal, stdout or both.
//
// Each package asks for a logger by module name once and attaches its own
// context:
//
//	logger := logging.GetLogger("encoder").With("session", name)
//	logger.Info("Session ready", "rc_mode", "cbr", "bps", 4000000)
//
// Modules in use are cli, config, encoder, rkmpp, display, mpp and events.
// A level under [logging.modules] overrides [logging] level for that module
// only. Loggers read their level on every record, so Initialize and
// SetModuleLevel take effect on loggers already handed out, which is how a
// pipeline file reload turns on encoder debug output mid-run:
//
//	[logging]
//	level = "info"
//
//	[logging.modules]
//	encoder = "debug"
//	display = "warn"
//
// Journal records carry SYSLOG_IDENTIFIER=hwvideo and MODULE. Attribute keys
// become upper-case field names, with groups joined by '_' and anything
// outside A-Z, 0-9 and '_' replaced, so "rc_mode" is RC_MODE and a
// "plane" group holding "id" is PLANE_ID:
//
//	journalctl -t hwvideo MODULE=display -p warning
//	journalctl -t hwvideo SESSION=cam0 -f
package logging
