package esp

import (
	"context"
	"fmt"
	"strconv"

	"i4.energy/across/esp8266/at"
)

// Op names a high-level operation for error mapping and logging.
type Op string

const (
	OpReboot         Op = "reboot"
	OpReset          Op = "reset"
	OpCheck          Op = "check"
	OpWifiMode       Op = "wifi mode"
	OpJoin           Op = "join"
	OpIP             Op = "ip"
	OpConnectionMode Op = "connection mode"
	OpServer         Op = "server"
	OpOpenTCP        Op = "open tcp"
	OpCloseTCP       Op = "close tcp"
	OpSend           Op = "send"
)

// opErrors maps each operation to the error its low-level failures are
// reported as.
var opErrors = map[Op]error{
	OpReboot:         ErrRebooting,
	OpReset:          ErrRebooting,
	OpCheck:          ErrNotATOK,
	OpWifiMode:       ErrWifiMode,
	OpJoin:           ErrUnableToConnect,
	OpIP:             ErrGetIP,
	OpConnectionMode: ErrConnectionMode,
	OpServer:         ErrServerMode,
	OpOpenTCP:        ErrUnableToLink,
	OpCloseTCP:       ErrUnableToUnlink,
	OpSend:           ErrSendMessage,
}

// fail wraps err with the error mapped to op. Both stay visible to
// errors.Is. A nil err stays nil.
func (d *Device) fail(op Op, err error) error {
	if err == nil {
		return nil
	}
	d.logger.Warn("operation failed", "op", string(op), "error", err)
	return fmt.Errorf("%w: %w", opErrors[op], err)
}

// Init brings the module into station mode on the given network: hardware
// reboot, station mode, join, and an IP query. A failed IP query is logged
// but does not fail Init.
func (d *Device) Init(ctx context.Context, ssid, password string) error {
	if err := d.Reboot(ctx); err != nil {
		return err
	}
	if err := d.WifiMode(ctx, at.ModeStation); err != nil {
		return err
	}
	if err := d.Join(ctx, ssid, password); err != nil {
		return err
	}
	if _, err := d.IP(ctx); err != nil {
		d.logger.Warn("could not read IP address", "error", err)
	}
	return nil
}

// Reboot pulses the hardware reset line and waits for the module to
// report ready.
func (d *Device) Reboot(ctx context.Context) error {
	if err := d.ready(); err != nil {
		return err
	}
	line := d.config.ResetLine
	if line == nil {
		if l, ok := d.transport.(ResetLine); ok {
			line = l
		}
	}
	if line == nil {
		return ErrNoResetLine
	}

	if err := line.Pulse(ctx); err != nil {
		return d.fail(OpReboot, err)
	}
	return d.fail(OpReboot, d.Await(ctx, at.Ready))
}

// Reset performs a software reset with AT+RST. It only works while the
// module still accepts commands; use Reboot otherwise.
func (d *Device) Reset(ctx context.Context) error {
	if err := d.ready(); err != nil {
		return err
	}
	if err := d.transport.Flush(); err != nil {
		return d.fail(OpReset, err)
	}
	return d.fail(OpReset, d.Expect(ctx, at.CmdReset, at.Ready))
}

// CheckWifi sends AT and expects OK.
func (d *Device) CheckWifi(ctx context.Context) error {
	return d.fail(OpCheck, d.Expect(ctx, at.CmdAt, at.OK))
}

// WifiMode selects station (at.ModeStation) or access point
// (at.ModeAccessPoint) mode. The module acknowledges this command with
// "no change" rather than OK.
func (d *Device) WifiMode(ctx context.Context, mode int) error {
	return d.fail(OpWifiMode, d.Expect(ctx, at.CmdWifiMode+strconv.Itoa(mode), at.NoChange))
}

// Join connects to the access point with the given credentials.
func (d *Device) Join(ctx context.Context, ssid, password string) error {
	return d.fail(OpJoin, d.Expect(ctx, JoinCommand(ssid, password), at.OK))
}

// JoinCommand formats the AT+CWJAP command line.
func JoinCommand(ssid, password string) string {
	return fmt.Sprintf(`%s"%s","%s"`, at.CmdJoinAP, ssid, password)
}

// IP queries the station address with AT+CIFSR and caches it.
//
// The reply is not delimited in a parseable way, so the address is cut at
// fixed offsets: it starts at byte 11 (after the echoed command) and ends 8
// bytes before the end (before "\r\n\r\nOK\r\n"). Firmware that changes
// this banner breaks the extraction.
func (d *Device) IP(ctx context.Context) (string, error) {
	if err := d.Send(at.CmdGetIP); err != nil {
		return "", err
	}
	// The tail offset counts the final CRLF, so wait for it too
	raw, err := d.collect(ctx, at.OK+at.CRLF, d.config.Budget)
	if err != nil {
		return "", d.fail(OpIP, err)
	}

	ip, err := ExtractIP(raw)
	if err != nil {
		return "", d.fail(OpIP, err)
	}
	d.state.IP = ip
	return ip, nil
}

const (
	ipHead = 11
	ipTail = 8
)

// ExtractIP cuts the address out of a raw AT+CIFSR reply.
func ExtractIP(raw string) (string, error) {
	if len(raw) < ipHead+ipTail {
		return "", fmt.Errorf("%w: %q", ErrShortIPResponse, raw)
	}
	return raw[ipHead : len(raw)-ipTail], nil
}
