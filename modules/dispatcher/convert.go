package dispatcher

import (
	"github.com/grafana/logrooms/pkg/entrystore"
	"github.com/grafana/logrooms/pkg/ingestproto"
	"github.com/grafana/logrooms/pkg/watchstore"
)

func entryFromLogEntry(p *ingestproto.LogEntryPacket, appName string) *entrystore.Entry {
	e := &entrystore.Entry{
		AppName:     appName,
		SessionName: p.SessionName,
		HostName:    p.HostName,
		ProcessID:   p.ProcessID,
		ThreadID:    p.ThreadID,
		Timestamp:   p.Timestamp,
		Level:       entrystore.Level(p.Level),
		Kind:        entrystore.Kind(p.Kind),
		Title:       p.Title,
		Binary:      p.Payload,
		Ctx:         p.Ctx,
	}
	if e.Kind == "" {
		e.Kind = entrystore.KindMessage
	}
	if p.HasColor {
		c := p.Color
		e.Color = &c
	}
	return e
}

func entryFromProcessFlow(p *ingestproto.ProcessFlowPacket, appName string) *entrystore.Entry {
	kind := entrystore.KindProcessFlowEnter
	if p.Subtype == ingestproto.ProcessFlowLeave {
		kind = entrystore.KindProcessFlowLeave
	}
	return &entrystore.Entry{
		AppName:     appName,
		SessionName: p.SessionName,
		HostName:    p.HostName,
		ProcessID:   p.ProcessID,
		ThreadID:    p.ThreadID,
		Timestamp:   p.Timestamp,
		Level:       entrystore.Message,
		Kind:        kind,
		Title:       p.MethodTitle,
	}
}

func sampleFromWatch(p *ingestproto.WatchPacket, appName string) watchstore.Sample {
	val, numeric := parseFloat(p.Value)
	return watchstore.Sample{
		Name:          p.Name,
		Value:         val,
		Raw:           p.Value,
		Numeric:       numeric,
		Timestamp:     p.Timestamp,
		OriginAppName: appName,
		WatchType:     p.WatchType,
		Group:         p.Group,
	}
}
