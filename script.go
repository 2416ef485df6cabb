package appmgr

import (
	"bufio"
	"fmt"
	"io"
)

// Startup script grammar: records terminated by ';', tokens separated by
// ',', whitespace (any byte <= 0x20) ignored everywhere, and the single byte
// '!' acting as the end-of-file sentinel. A record needs at least
// startupMinTokens tokens:
//
//	EntryType, FileName, EntryPoint, AppName, Priority, StackSize, <ignored>, ExceptionAction
//
// Recognized entry types.
const (
	scriptEntryApp = "CFE_APP"
	scriptEntryLib = "CFE_LIB"

	startupMinTokens = 8

	// startupRecordCap bounds the cumulative token bytes of one record.
	// Records that reach this many bytes are dropped at their terminator and
	// parsing resumes.
	startupRecordCap = 256
)

// StartApps opens the startup script selected by the reset type and creates
// every application and library it names. On a processor reset the volatile
// script path is tried first, falling back to the non-volatile path; a
// power-on reset always uses the non-volatile path.
//
// Individual record failures (short records, unknown entry types, creation
// errors) are logged and skipped; only an unreadable script or stream error
// fails the call.
func (m *Manager) StartApps(reset ResetType) error {
	path := m.cfg.nonVolatileScriptPath
	var (
		rc  io.ReadCloser
		err error
	)
	if reset == ResetProcessor && m.cfg.volatileScriptPath != "" {
		rc, err = m.port.OpenScript(m.cfg.volatileScriptPath)
		if err != nil {
			m.writeSysLog("startup: volatile script %s unavailable (%v), using %s",
				m.cfg.volatileScriptPath, err, path)
			rc = nil
		} else {
			path = m.cfg.volatileScriptPath
		}
	}
	if rc == nil {
		rc, err = m.port.OpenScript(path)
		if err != nil {
			return fmt.Errorf("appmgr: open startup script %s: %w", path, err)
		}
	}
	defer rc.Close()
	m.writeSysLog("startup: processing script %s", path)
	return m.parseStartupScript(rc)
}

// parseStartupScript tokenizes the byte stream and dispatches each complete
// record. Tokens accumulate until ',' or ';'; a record whose cumulative
// length reaches startupRecordCap is marked too long and dropped at its
// terminator, with parsing resuming at the next record.
func (m *Manager) parseStartupScript(r io.Reader) error {
	br := bufio.NewReader(r)
	var (
		tok     []byte
		tokens  []string
		size    int
		tooLong bool
	)
	for {
		c, err := br.ReadByte()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("appmgr: read startup script: %w", err)
		}
		if c == '!' {
			break
		}
		if c <= 0x20 {
			continue
		}
		switch c {
		case ',':
			tokens = append(tokens, string(tok))
			tok = tok[:0]
		case ';':
			tokens = append(tokens, string(tok))
			tok = tok[:0]
			if tooLong {
				m.sendEvent(EventScriptErr, true, "",
					"startup record exceeds %d bytes, dropped", startupRecordCap)
			} else {
				m.dispatchScriptRecord(tokens)
			}
			tokens, size, tooLong = nil, 0, false
		default:
			size++
			if size >= startupRecordCap {
				tooLong = true
			}
			if !tooLong {
				tok = append(tok, c)
			}
		}
	}
	return nil
}

// dispatchScriptRecord validates one record and routes it to the app or
// library creator. Rejected records are logged; parsing continues.
func (m *Manager) dispatchScriptRecord(tokens []string) {
	if len(tokens) < startupMinTokens {
		m.sendEvent(EventScriptErr, true, "",
			"startup record has %d tokens, need %d", len(tokens), startupMinTokens)
		return
	}
	var (
		entryType  = tokens[0]
		fileName   = tokens[1]
		entryPoint = tokens[2]
		name       = tokens[3]
		priority   = parseScriptUint(tokens[4])
		stackSize  = parseScriptUint(tokens[5])
		excAction  = parseScriptUint(tokens[7])
	)
	action := ExceptionAction(excAction)
	if excAction > uint32(ExceptionRestartApp) {
		action = ExceptionProcRestart
	}
	switch entryType {
	case scriptEntryApp:
		m.writeSysLog("startup: creating app %s from %s", name, fileName)
		if _, err := m.AppCreate(fileName, entryPoint, name, uint16(priority), stackSize, action); err != nil {
			m.writeSysLog("startup: app %s failed: %v", name, err)
		}
	case scriptEntryLib:
		m.writeSysLog("startup: loading library %s from %s", name, fileName)
		if _, _, err := m.LoadLibrary(fileName, entryPoint, name); err != nil {
			m.writeSysLog("startup: library %s failed: %v", name, err)
		}
	default:
		m.sendEvent(EventScriptErr, true, name,
			"unknown startup entry type %q, record skipped", entryType)
	}
}

// parseScriptUint parses an unsigned integer with base autodetection (0x or
// 0X for hex, a leading 0 for octal, decimal otherwise). Trailing non-digit
// bytes are silently dropped; the result saturates at the uint32 maximum.
func parseScriptUint(tok string) uint32 {
	base, s := uint64(10), tok
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		base, s = 16, s[2:]
	} else if len(s) > 1 && s[0] == '0' {
		base, s = 8, s[1:]
	}
	var v uint64
	for i := 0; i < len(s); i++ {
		d := digitValue(s[i])
		if d < 0 || uint64(d) >= base {
			break
		}
		v = v*base + uint64(d)
		if v > 0xFFFFFFFF {
			return 0xFFFFFFFF
		}
	}
	return uint32(v)
}

func digitValue(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c-'a') + 10
	case c >= 'A' && c <= 'F':
		return int(c-'A') + 10
	default:
		return -1
	}
}
