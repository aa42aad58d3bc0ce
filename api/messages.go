package api

import "github.com/muurk/esplink/protocol"

// emptyPayload provides the marshalling for messages that carry no fields.
// Decoding tolerates stray fields from newer firmware.
type emptyPayload struct{}

func (emptyPayload) MarshalBinary() ([]byte, error) { return nil, nil }

func (emptyPayload) UnmarshalBinary(payload []byte) error {
	d := newFieldDecoder(payload)
	for d.next() {
	}
	return d.err()
}

// HelloRequest opens the handshake and presents the client's identity and
// the protocol version it implements.
type HelloRequest struct {
	ClientInfo      string
	APIVersionMajor uint32
	APIVersionMinor uint32
}

func (*HelloRequest) MessageType() protocol.Type { return TypeHelloRequest }

func (m *HelloRequest) MarshalBinary() ([]byte, error) {
	b := appendStringField(nil, 1, m.ClientInfo)
	b = appendUvarintField(b, 2, uint64(m.APIVersionMajor))
	b = appendUvarintField(b, 3, uint64(m.APIVersionMinor))
	return b, nil
}

func (m *HelloRequest) UnmarshalBinary(payload []byte) error {
	d := newFieldDecoder(payload)
	for d.next() {
		switch d.field {
		case 1:
			m.ClientInfo = d.stringVal()
		case 2:
			m.APIVersionMajor = d.uint32Val()
		case 3:
			m.APIVersionMinor = d.uint32Val()
		}
	}
	return d.err()
}

// HelloResponse carries the server's protocol version and identity. The
// version decides which protocol features may be used on the connection.
type HelloResponse struct {
	APIVersionMajor uint32
	APIVersionMinor uint32
	ServerInfo      string
	Name            string
}

func (*HelloResponse) MessageType() protocol.Type { return TypeHelloResponse }

func (m *HelloResponse) MarshalBinary() ([]byte, error) {
	b := appendUvarintField(nil, 1, uint64(m.APIVersionMajor))
	b = appendUvarintField(b, 2, uint64(m.APIVersionMinor))
	b = appendStringField(b, 3, m.ServerInfo)
	b = appendStringField(b, 4, m.Name)
	return b, nil
}

func (m *HelloResponse) UnmarshalBinary(payload []byte) error {
	d := newFieldDecoder(payload)
	for d.next() {
		switch d.field {
		case 1:
			m.APIVersionMajor = d.uint32Val()
		case 2:
			m.APIVersionMinor = d.uint32Val()
		case 3:
			m.ServerInfo = d.stringVal()
		case 4:
			m.Name = d.stringVal()
		}
	}
	return d.err()
}

// ConnectRequest authenticates the session. Devices without a password
// still expect the request, with the password left empty.
type ConnectRequest struct {
	Password string
}

func (*ConnectRequest) MessageType() protocol.Type { return TypeConnectRequest }

func (m *ConnectRequest) MarshalBinary() ([]byte, error) {
	return appendStringField(nil, 1, m.Password), nil
}

func (m *ConnectRequest) UnmarshalBinary(payload []byte) error {
	d := newFieldDecoder(payload)
	for d.next() {
		if d.field == 1 {
			m.Password = d.stringVal()
		}
	}
	return d.err()
}

// ConnectResponse reports whether the presented password was accepted.
type ConnectResponse struct {
	InvalidPassword bool
}

func (*ConnectResponse) MessageType() protocol.Type { return TypeConnectResponse }

func (m *ConnectResponse) MarshalBinary() ([]byte, error) {
	return appendBoolField(nil, 1, m.InvalidPassword), nil
}

func (m *ConnectResponse) UnmarshalBinary(payload []byte) error {
	d := newFieldDecoder(payload)
	for d.next() {
		if d.field == 1 {
			m.InvalidPassword = d.boolVal()
		}
	}
	return d.err()
}

// DisconnectRequest announces an orderly shutdown. Either side may send
// it; the peer acknowledges and closes.
type DisconnectRequest struct{ emptyPayload }

func (*DisconnectRequest) MessageType() protocol.Type { return TypeDisconnectRequest }

// DisconnectResponse acknowledges a DisconnectRequest.
type DisconnectResponse struct{ emptyPayload }

func (*DisconnectResponse) MessageType() protocol.Type { return TypeDisconnectResponse }

// PingRequest is the keepalive probe. The device sends these periodically
// and expects a PingResponse; clients may probe the device the same way.
type PingRequest struct{ emptyPayload }

func (*PingRequest) MessageType() protocol.Type { return TypePingRequest }

// PingResponse answers a PingRequest.
type PingResponse struct{ emptyPayload }

func (*PingResponse) MessageType() protocol.Type { return TypePingResponse }

// DeviceInfoRequest asks for the device description. Permitted before
// authentication.
type DeviceInfoRequest struct{ emptyPayload }

func (*DeviceInfoRequest) MessageType() protocol.Type { return TypeDeviceInfoRequest }

// DeviceInfoResponse describes the device: identity, firmware build and
// whether ConnectRequest must carry a password.
type DeviceInfoResponse struct {
	UsesPassword    bool
	Name            string
	MACAddress      string
	EsphomeVersion  string
	CompilationTime string
	Model           string
	HasDeepSleep    bool
}

func (*DeviceInfoResponse) MessageType() protocol.Type { return TypeDeviceInfoResponse }

func (m *DeviceInfoResponse) MarshalBinary() ([]byte, error) {
	b := appendBoolField(nil, 1, m.UsesPassword)
	b = appendStringField(b, 2, m.Name)
	b = appendStringField(b, 3, m.MACAddress)
	b = appendStringField(b, 4, m.EsphomeVersion)
	b = appendStringField(b, 5, m.CompilationTime)
	b = appendStringField(b, 6, m.Model)
	b = appendBoolField(b, 7, m.HasDeepSleep)
	return b, nil
}

func (m *DeviceInfoResponse) UnmarshalBinary(payload []byte) error {
	d := newFieldDecoder(payload)
	for d.next() {
		switch d.field {
		case 1:
			m.UsesPassword = d.boolVal()
		case 2:
			m.Name = d.stringVal()
		case 3:
			m.MACAddress = d.stringVal()
		case 4:
			m.EsphomeVersion = d.stringVal()
		case 5:
			m.CompilationTime = d.stringVal()
		case 6:
			m.Model = d.stringVal()
		case 7:
			m.HasDeepSleep = d.boolVal()
		}
	}
	return d.err()
}

// GetTimeRequest asks the peer for wall-clock time. The device also sends
// this to clients that can answer with the current epoch.
type GetTimeRequest struct{ emptyPayload }

func (*GetTimeRequest) MessageType() protocol.Type { return TypeGetTimeRequest }

// GetTimeResponse carries seconds since the Unix epoch.
type GetTimeResponse struct {
	EpochSeconds uint32
}

func (*GetTimeResponse) MessageType() protocol.Type { return TypeGetTimeResponse }

func (m *GetTimeResponse) MarshalBinary() ([]byte, error) {
	return appendFixed32Field(nil, 1, m.EpochSeconds), nil
}

func (m *GetTimeResponse) UnmarshalBinary(payload []byte) error {
	d := newFieldDecoder(payload)
	for d.next() {
		if d.field == 1 {
			m.EpochSeconds = d.fixed32Val()
		}
	}
	return d.err()
}
