package server

import (
	"github.com/golang/protobuf/proto"

	"github.com/pthm-cable/stride/sim"
	"github.com/pthm-cable/stride/telemetry"
)

// Frame is one published update as sent on /stream.
type Frame struct {
	Tick   int32         `protobuf:"varint,1,opt,name=tick,proto3" json:"tick,omitempty"`
	Time   float64       `protobuf:"fixed64,2,opt,name=time,proto3" json:"time,omitempty"`
	Agents []*AgentState `protobuf:"bytes,3,rep,name=agents,proto3" json:"agents,omitempty"`
	Events []*Event      `protobuf:"bytes,4,rep,name=events,proto3" json:"events,omitempty"`
}

func (m *Frame) Reset()         { *m = Frame{} }
func (m *Frame) String() string { return proto.CompactTextString(m) }
func (*Frame) ProtoMessage()    {}

// AgentState is the wire form of sim.AgentView without the path.
type AgentState struct {
	Id        uint32  `protobuf:"varint,1,opt,name=id,proto3" json:"id,omitempty"`
	Name      string  `protobuf:"bytes,2,opt,name=name,proto3" json:"name,omitempty"`
	State     string  `protobuf:"bytes,3,opt,name=state,proto3" json:"state,omitempty"`
	X         float64 `protobuf:"fixed64,4,opt,name=x,proto3" json:"x,omitempty"`
	Z         float64 `protobuf:"fixed64,5,opt,name=z,proto3" json:"z,omitempty"`
	Vx        float64 `protobuf:"fixed64,6,opt,name=vx,proto3" json:"vx,omitempty"`
	Vz        float64 `protobuf:"fixed64,7,opt,name=vz,proto3" json:"vz,omitempty"`
	Heading   float64 `protobuf:"fixed64,8,opt,name=heading,proto3" json:"heading,omitempty"`
	Intent    float64 `protobuf:"fixed64,9,opt,name=intent,proto3" json:"intent,omitempty"`
	HasGoal   bool    `protobuf:"varint,10,opt,name=hasGoal,proto3" json:"hasGoal,omitempty"`
	GoalX     int32   `protobuf:"varint,11,opt,name=goalX,proto3" json:"goalX,omitempty"`
	GoalY     int32   `protobuf:"varint,12,opt,name=goalY,proto3" json:"goalY,omitempty"`
	Remaining int32   `protobuf:"varint,13,opt,name=remaining,proto3" json:"remaining,omitempty"`
}

func (m *AgentState) Reset()         { *m = AgentState{} }
func (m *AgentState) String() string { return proto.CompactTextString(m) }
func (*AgentState) ProtoMessage()    {}

// Event is the wire form of telemetry.Event.
type Event struct {
	Type    string `protobuf:"bytes,1,opt,name=type,proto3" json:"type,omitempty"`
	Tick    int32  `protobuf:"varint,2,opt,name=tick,proto3" json:"tick,omitempty"`
	AgentId uint32 `protobuf:"varint,3,opt,name=agentId,proto3" json:"agentId,omitempty"`
	Ix      int32  `protobuf:"varint,4,opt,name=ix,proto3" json:"ix,omitempty"`
	Iy      int32  `protobuf:"varint,5,opt,name=iy,proto3" json:"iy,omitempty"`
}

func (m *Event) Reset()         { *m = Event{} }
func (m *Event) String() string { return proto.CompactTextString(m) }
func (*Event) ProtoMessage()    {}

// NewFrame converts a runner update.
func NewFrame(u sim.Update) *Frame {
	f := &Frame{
		Tick:   u.Snapshot.Tick,
		Time:   u.Snapshot.Time,
		Agents: make([]*AgentState, len(u.Snapshot.Agents)),
	}
	for i, a := range u.Snapshot.Agents {
		st := &AgentState{
			Id:        a.ID,
			Name:      a.Name,
			State:     a.State,
			X:         a.Position.X,
			Z:         a.Position.Z,
			Vx:        a.Velocity.X,
			Vz:        a.Velocity.Z,
			Heading:   a.Heading,
			Intent:    a.Intent,
			Remaining: int32(a.Remaining),
		}
		if a.Goal != nil {
			st.HasGoal = true
			st.GoalX = int32(a.Goal.IX)
			st.GoalY = int32(a.Goal.IY)
		}
		f.Agents[i] = st
	}
	if len(u.Events) > 0 {
		f.Events = make([]*Event, len(u.Events))
		for i, e := range u.Events {
			f.Events[i] = eventOf(e)
		}
	}
	return f
}

func eventOf(e telemetry.Event) *Event {
	return &Event{
		Type:    e.Type.String(),
		Tick:    e.Tick,
		AgentId: e.AgentID,
		Ix:      int32(e.IX),
		Iy:      int32(e.IY),
	}
}

// Encode marshals f for a binary websocket message.
func (f *Frame) Encode() ([]byte, error) {
	return proto.Marshal(f)
}
