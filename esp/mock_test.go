package esp_test

import (
	"fmt"

	"i4.energy/across/esp8266/esp"
)

type MockSequenceBuilder struct {
	transport *esp.MockTransport
	calls     []any
}

func NewMockSequence(transport *esp.MockTransport) *MockSequenceBuilder {
	return &MockSequenceBuilder{
		transport: transport,
		calls:     []any{},
	}
}

// write expects cmd to be written with a CRLF terminator.
func (b *MockSequenceBuilder) write(cmd string) *MockSequenceBuilder {
	wire := cmd + "\r\n"
	b.calls = append(b.calls,
		b.transport.EXPECT().Write([]byte(wire)).Return(len(wire), nil),
	)
	return b
}

// Receive expects one drain that yields resp.
func (b *MockSequenceBuilder) Receive(resp string) *MockSequenceBuilder {
	for i := 0; i < len(resp); i++ {
		b.calls = append(b.calls,
			b.transport.EXPECT().Available().Return(len(resp)-i),
			b.transport.EXPECT().ReadByte().Return(resp[i], nil),
		)
	}
	b.calls = append(b.calls, b.transport.EXPECT().Available().Return(0))
	return b
}

// Silence expects n drains that find nothing.
func (b *MockSequenceBuilder) Silence(n int) *MockSequenceBuilder {
	b.calls = append(b.calls, b.transport.EXPECT().Available().Return(0).Times(n))
	return b
}

func (b *MockSequenceBuilder) Ready() *MockSequenceBuilder {
	return b.Receive("\r\n[Vendor:www.ai-thinker.com Version:0.9.2.4]\r\n\r\nready\r\n")
}

func (b *MockSequenceBuilder) AT() *MockSequenceBuilder {
	return b.write("AT").Receive("AT\r\r\n\r\nOK\r\n")
}

func (b *MockSequenceBuilder) StationMode() *MockSequenceBuilder {
	return b.write("AT+CWMODE=1").Receive("AT+CWMODE=1\r\r\nno change\r\n")
}

func (b *MockSequenceBuilder) Join(ssid, password string) *MockSequenceBuilder {
	cmd := fmt.Sprintf(`AT+CWJAP="%s","%s"`, ssid, password)
	return b.write(cmd).Receive(cmd + "\r\r\n\r\nOK\r\n")
}

func (b *MockSequenceBuilder) JoinFailed(ssid, password string) *MockSequenceBuilder {
	cmd := fmt.Sprintf(`AT+CWJAP="%s","%s"`, ssid, password)
	return b.write(cmd).Receive(cmd + "\r\r\n\r\nFAIL\r\n")
}

func (b *MockSequenceBuilder) IP(ip string) *MockSequenceBuilder {
	return b.write("AT+CIFSR").Receive("AT+CIFSR\r\r\n" + ip + "\r\n\r\nOK\r\n")
}

func (b *MockSequenceBuilder) Build() []any {
	return b.calls
}
