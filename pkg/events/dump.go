package events

import (
	json "github.com/nikkolasg/hexjson"
)

// dumpEntry is the human-facing shape of one captured event: hex-encoded
// byte fields (via hexjson) so history dumps are greppable by event id,
// seed, or key material prefixes.
type dumpEntry struct {
	Id          string  `json:"id"`
	Seq         uint64  `json:"seq"`
	TsWall      uint64  `json:"ts_wall"`
	TsLogic     uint64  `json:"ts_logic"`
	Kind        Kind    `json:"kind"`
	E3id        string  `json:"e3_id,omitempty"`
	OriginId    string  `json:"origin_id"`
	CausationId string  `json:"causation_id"`
	Payload     Payload `json:"payload"`
}

// DumpEvents renders captured bus history for diagnostics (spec §4.1's
// "history capture"), one entry per event with byte fields hex-encoded.
func DumpEvents(evs []Event) ([]byte, error) {
	entries := make([]dumpEntry, 0, len(evs))
	for _, ev := range evs {
		e := dumpEntry{
			Id:          ev.Id.String(),
			Seq:         ev.Seq,
			TsWall:      ev.Ts.Wall,
			TsLogic:     ev.Ts.Logic,
			Kind:        ev.Kind(),
			OriginId:    ev.OriginId.String(),
			CausationId: ev.CausationId.String(),
			Payload:     ev.Payload,
		}
		if id, ok := ev.E3id(); ok {
			e.E3id = id.String()
		}
		entries = append(entries, e)
	}
	return json.Marshal(entries)
}
