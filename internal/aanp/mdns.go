package aanp

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/brutella/dnssd"
	"github.com/google/uuid"
)

// ServiceType is the mDNS/DNS-SD service type AANP nodes advertise under.
const ServiceType = "_aaeq-anp._tcp"

// Record is the set of fields advertised in an AANP mDNS TXT record.
type Record struct {
	UUID             uuid.UUID
	Version          string
	SampleRates      []int
	BitDepths        []string
	Channels         int
	CoreFeatures     []Feature
	OptionalFeatures []Feature
	ControlURL       string
	State            State
	VolumePercent    int
	DACName          string
	Platform         string
}

// ToTXT renders the record as an mDNS TXT key/value map (§6.2).
func (r Record) ToTXT() map[string]string {
	txt := map[string]string{
		"uuid": r.UUID.String(),
		"v":    r.Version,
		"sr":   joinInts(r.SampleRates),
		"bd":   strings.Join(r.BitDepths, ","),
		"ch":   strconv.Itoa(r.Channels),
		"ft":   joinFeatures(r.CoreFeatures),
		"opt":  joinFeatures(r.OptionalFeatures),
		"st":   string(r.State),
		"vol":  strconv.Itoa(r.VolumePercent),
	}
	if r.ControlURL != "" {
		txt["ctrl"] = r.ControlURL
	}
	if r.DACName != "" {
		txt["dac"] = r.DACName
	}
	if r.Platform != "" {
		txt["hw"] = r.Platform
	}
	return txt
}

// RecordFromTXT parses a TXT key/value map back into a Record.
func RecordFromTXT(txt map[string]string) (Record, error) {
	id, err := uuid.Parse(txt["uuid"])
	if err != nil {
		return Record{}, fmt.Errorf("aanp: parse txt uuid: %w", err)
	}
	ch, err := strconv.Atoi(txt["ch"])
	if err != nil {
		return Record{}, fmt.Errorf("aanp: parse txt channels: %w", err)
	}
	vol, err := strconv.Atoi(txt["vol"])
	if err != nil {
		return Record{}, fmt.Errorf("aanp: parse txt vol: %w", err)
	}

	r := Record{
		UUID:             id,
		Version:          txt["v"],
		SampleRates:       splitInts(txt["sr"]),
		BitDepths:        splitNonEmpty(txt["bd"]),
		Channels:         ch,
		CoreFeatures:     splitFeatures(txt["ft"]),
		OptionalFeatures: splitFeatures(txt["opt"]),
		ControlURL:       txt["ctrl"],
		State:            State(txt["st"]),
		VolumePercent:    vol,
		DACName:          txt["dac"],
		Platform:         txt["hw"],
	}
	return r, nil
}

func joinInts(vals []int) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}

func splitInts(s string) []int {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func joinFeatures(fs []Feature) string {
	parts := make([]string, len(fs))
	for i, f := range fs {
		parts[i] = string(f)
	}
	return strings.Join(parts, ",")
}

func splitFeatures(s string) []Feature {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]Feature, len(parts))
	for i, p := range parts {
		out[i] = Feature(p)
	}
	return out
}

// Advertiser announces an AANP node on the local network via mDNS/DNS-SD.
type Advertiser struct {
	responder dnssd.Responder
	handle    dnssd.ServiceHandle
}

// Advertise registers and starts responding for the given record on port.
// The returned Advertiser's Shutdown must be called to withdraw the
// announcement. name is the instance name shown to browsers.
func Advertise(ctx context.Context, name string, port int, rec Record) (*Advertiser, error) {
	cfg := dnssd.Config{
		Name: name,
		Type: ServiceType,
		Port: port,
		Text: rec.ToTXT(),
	}

	svc, err := dnssd.NewService(cfg)
	if err != nil {
		return nil, fmt.Errorf("aanp: create mdns service: %w", err)
	}

	responder, err := dnssd.NewResponder()
	if err != nil {
		return nil, fmt.Errorf("aanp: create mdns responder: %w", err)
	}

	handle, err := responder.Add(svc)
	if err != nil {
		return nil, fmt.Errorf("aanp: add mdns service: %w", err)
	}

	a := &Advertiser{responder: responder, handle: handle}

	go func() {
		_ = responder.Respond(ctx)
	}()

	return a, nil
}

// Shutdown withdraws the advertised record.
func (a *Advertiser) Shutdown(ctx context.Context) {
	a.responder.Remove(a.handle)
}
