package esp

import (
	"context"
	"fmt"
	"strconv"

	"i4.energy/across/esp8266/at"
)

// ConnectionMode switches between single (false) and multiple (true)
// connection mode with AT+CIPMUX.
func (d *Device) ConnectionMode(ctx context.Context, multi bool) error {
	return d.fail(OpConnectionMode, d.Expect(ctx, at.CmdConnectionMode+flag(multi), at.OK))
}

// SetServer enables multiple connection mode and starts listening on port.
// Clients can then open TCP connections to the module's IP.
func (d *Device) SetServer(ctx context.Context, port int) error {
	if err := d.ConnectionMode(ctx, true); err != nil {
		return err
	}
	cmd := at.CmdServerMode + at.True + "," + strconv.Itoa(port)
	if err := d.Expect(ctx, cmd, at.OK); err != nil {
		return d.fail(OpServer, err)
	}
	d.state.ServerPort = strconv.Itoa(port)
	return nil
}

// CloseServer stops server mode.
func (d *Device) CloseServer(ctx context.Context) error {
	if err := d.ConnectionMode(ctx, true); err != nil {
		return err
	}
	if err := d.Expect(ctx, at.CmdServerMode+at.False, at.OK); err != nil {
		return d.fail(OpServer, err)
	}
	d.state.ServerPort = ""
	return nil
}

// SetTxMode selects transparent (true) or normal (false) transmission with
// AT+CIPMODE. In normal mode inbound data arrives as +IPD frames. The module
// reply is not awaited.
func (d *Device) SetTxMode(on bool) error {
	cmd := at.CmdTxModeOff
	if on {
		cmd = at.CmdTxModeOn
	}
	if err := d.Send(cmd); err != nil {
		return err
	}
	d.state.TxMode = on
	return nil
}

// OpenTCP opens a TCP connection to ip:port. When wait is false the command
// is only written and the caller is expected to watch ReadCmd for the Link
// notification.
func (d *Device) OpenTCP(ctx context.Context, ip string, port int, wait bool) error {
	if err := d.Send(OpenTCPCommand(ip, port)); err != nil {
		return d.fail(OpOpenTCP, err)
	}
	if !wait {
		return nil
	}
	d.config.Sleep(d.config.SettleDelay)
	return d.fail(OpOpenTCP, d.Await(ctx, at.Link))
}

// OpenTCPCommand formats the AT+CIPSTART command line.
func OpenTCPCommand(ip string, port int) string {
	return fmt.Sprintf(`%s"TCP","%s",%d`, at.CmdStart, ip, port)
}

// CloseTCP closes the current TCP connection and waits for Unlink.
func (d *Device) CloseTCP(ctx context.Context) error {
	return d.fail(OpCloseTCP, d.Expect(ctx, at.CmdClose, at.Unlink))
}

// SendMessage announces len(msg) bytes with AT+CIPSEND, lets the module
// settle, then writes msg as is. When wait is true it waits for expected,
// or "SEND OK" if expected is empty.
func (d *Device) SendMessage(ctx context.Context, msg []byte, expected string, wait bool) error {
	if err := d.Send(at.CmdSend + strconv.Itoa(len(msg))); err != nil {
		return d.fail(OpSend, err)
	}
	d.config.Sleep(d.config.SettleDelay)
	if _, err := d.transport.Write(msg); err != nil {
		return d.fail(OpSend, fmt.Errorf("write payload: %w", err))
	}
	if !wait {
		return nil
	}
	if expected == "" {
		expected = at.SendOK
	}
	return d.fail(OpSend, d.Await(ctx, expected))
}

func flag(on bool) string {
	if on {
		return at.True
	}
	return at.False
}
