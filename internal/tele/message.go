package tele

import (
	"github.com/golang/protobuf/proto"
	"github.com/juju/errors"
)

// Queue item is one tag byte followed by protobuf message.
const (
	qSubmit byte = 1
	qError  byte = 2
)

// SubmitReport is published to <prefix>/submit after each register write.
type SubmitReport struct {
	Id       string `protobuf:"bytes,1,opt,name=id,proto3" json:"id,omitempty"`
	Time     int64  `protobuf:"varint,2,opt,name=time,proto3" json:"time,omitempty"`
	Address  uint32 `protobuf:"varint,3,opt,name=address,proto3" json:"address,omitempty"`
	Register uint32 `protobuf:"varint,4,opt,name=register,proto3" json:"register,omitempty"`
	Value    uint32 `protobuf:"varint,5,opt,name=value,proto3" json:"value,omitempty"`
	Status   uint32 `protobuf:"varint,6,opt,name=status,proto3" json:"status,omitempty"`
}

func (m *SubmitReport) Reset()         { *m = SubmitReport{} }
func (m *SubmitReport) String() string { return proto.CompactTextString(m) }
func (*SubmitReport) ProtoMessage()    {}

// ErrorReport is published to <prefix>/error for each logged error.
type ErrorReport struct {
	Id      string `protobuf:"bytes,1,opt,name=id,proto3" json:"id,omitempty"`
	Time    int64  `protobuf:"varint,2,opt,name=time,proto3" json:"time,omitempty"`
	Message string `protobuf:"bytes,3,opt,name=message,proto3" json:"message,omitempty"`
}

func (m *ErrorReport) Reset()         { *m = ErrorReport{} }
func (m *ErrorReport) String() string { return proto.CompactTextString(m) }
func (*ErrorReport) ProtoMessage()    {}

func encodeItem(tag byte, pb proto.Message) ([]byte, error) {
	buf := proto.NewBuffer(make([]byte, 0, 128))
	if err := buf.EncodeVarint(uint64(tag)); err != nil {
		return nil, err
	}
	if err := buf.Marshal(pb); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// decodeItem checks queue item and returns its tag and message bytes.
func decodeItem(b []byte) (byte, []byte, error) {
	if len(b) == 0 {
		return 0, nil, errors.NotValidf("tele queue item empty")
	}
	var pb proto.Message
	switch b[0] {
	case qSubmit:
		pb = &SubmitReport{}
	case qError:
		pb = &ErrorReport{}
	default:
		return 0, nil, errors.NotValidf("tele queue item tag=%d", b[0])
	}
	if err := proto.Unmarshal(b[1:], pb); err != nil {
		return 0, nil, errors.Annotatef(err, "tele queue item tag=%d", b[0])
	}
	return b[0], b[1:], nil
}
