package goIdentity

import "github.com/MrEthical07/goIdentity/internal/audit"

// AuditEvent is one security-relevant account or grant operation. It never
// carries passwords or token material.
type AuditEvent = audit.Event

// AuditSink receives audit events from the Engine's dispatcher.
type AuditSink = audit.Sink

// NoOpSink drops audit events.
type NoOpSink = audit.NoOpSink

// ChannelSink buffers audit events in a channel. Useful in tests.
type ChannelSink = audit.ChannelSink

// JSONWriterSink writes one JSON object per audit event.
type JSONWriterSink = audit.JSONWriterSink

// NewChannelSink returns a sink that buffers up to buffer events.
var NewChannelSink = audit.NewChannelSink

// NewJSONWriterSink returns a sink that writes JSON lines to w.
var NewJSONWriterSink = audit.NewJSONWriterSink
