package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/soniakeys/unit"
	"github.com/sony/gobreaker"

	"github.com/i474232898/transit-feed/internal/coords"
	"github.com/i474232898/transit-feed/internal/transit"
)

// DefaultMiriadeURL is the IMCCE Miriade ephemcc endpoint.
const DefaultMiriadeURL = "https://ssp.imcce.fr/webservices/miriade/api/ephemcc.php"

// Miriade resolves bodies through the IMCCE Miriade ephemeris service.
type Miriade struct {
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

// NewMiriade creates a Miriade source. An empty baseURL uses DefaultMiriadeURL.
func NewMiriade(baseURL string, cfg HTTPClientConfig) *Miriade {
	if baseURL == "" {
		baseURL = DefaultMiriadeURL
	}
	return &Miriade{
		baseURL: baseURL,
		httpCfg: cfg,
		circuit: newBreaker(transit.SourceMiriade),
	}
}

func (m *Miriade) Name() string {
	return transit.SourceMiriade
}

// miriadeName returns the qualified -name value: p: planets, s: satellites,
// dp: dwarf planets and a: asteroids.
func miriadeName(b transit.Body) string {
	if b.MiriadeID != "" {
		return b.MiriadeID
	}
	switch strings.ToLower(b.Name) {
	case "moon":
		return "s:Moon"
	case "pluto", "ceres", "eris", "makemake", "haumea":
		return "dp:" + b.Name
	}
	if b.Category == transit.CategoryMajor {
		return "p:" + b.Name
	}
	return "a:" + b.Name
}

func (m *Miriade) Resolve(ctx context.Context, body transit.Body, at time.Time) (transit.Coordinates, error) {
	switch body.Category {
	case transit.CategoryFixedStar, transit.CategorySymbolic:
		return transit.Coordinates{}, fmt.Errorf("%w: miriade does not serve %s bodies", transit.ErrNoResult, body.Category)
	}

	buildRequest := func(ctx context.Context) (*http.Request, error) {
		values := url.Values{}
		values.Set("-name", miriadeName(body))
		values.Set("-ep", strconv.FormatFloat(coords.JulianDay(at), 'f', 6, 64))
		values.Set("-observer", "500")
		values.Set("-teph", "1")
		values.Set("-tcoor", "1")
		values.Set("-rplane", "2")
		values.Set("-nbd", "1")
		values.Set("-mime", "json")

		u := fmt.Sprintf("%s?%s", m.baseURL, values.Encode())
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	}

	data, err := fetchWithResilience(ctx, m.httpCfg, m.circuit, buildRequest)
	if err != nil {
		return transit.Coordinates{}, err
	}
	return parseMiriade(data, at)
}

// parseMiriade reads the first data row. The service sometimes nests the
// document as a JSON string under "result".
func parseMiriade(data []byte, at time.Time) (transit.Coordinates, error) {
	var doc struct {
		Result json.RawMessage          `json:"result"`
		Data   []map[string]interface{} `json:"data"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return transit.Coordinates{}, fmt.Errorf("decoding miriade response: %w", err)
	}
	if len(doc.Data) == 0 && len(doc.Result) > 0 {
		var nested string
		if err := json.Unmarshal(doc.Result, &nested); err == nil {
			return parseMiriade([]byte(nested), at)
		}
		var inner struct {
			Data []map[string]interface{} `json:"data"`
		}
		if err := json.Unmarshal(doc.Result, &inner); err == nil {
			doc.Data = inner.Data
		}
	}
	if len(doc.Data) == 0 {
		return transit.Coordinates{}, fmt.Errorf("%w: miriade returned no rows", transit.ErrNoResult)
	}

	row := make(map[string]interface{}, len(doc.Data[0]))
	for k, v := range doc.Data[0] {
		row[strings.ToLower(k)] = v
	}

	aux := &transit.Auxiliary{
		Delta:      field(row, false, "distance", "delta", "dobs"),
		R:          field(row, false, "dhelio", "r"),
		PhaseAngle: field(row, false, "phase"),
		Elongation: field(row, false, "elong"),
	}
	lon := field(row, false, "elon", "ecllon", "longitude", "lambda")
	lat := field(row, false, "elat", "ecllat", "latitude", "beta")
	if lon != nil && lat != nil {
		return transit.Coordinates{Lon: coords.Normalize(*lon), Lat: *lat, Aux: aux}, nil
	}

	ra := field(row, true, "ra")
	dec := field(row, false, "dec")
	if ra != nil && dec != nil {
		aux.RA, aux.Dec = ra, dec
		l, b := coords.FromJ2000(*ra, *dec, at)
		return transit.Coordinates{Lon: l, Lat: b, Aux: aux}, nil
	}
	return transit.Coordinates{}, fmt.Errorf("%w: miriade row has no position", transit.ErrNoResult)
}

// field returns the first key present as degrees. Numbers pass through;
// strings may be decimal degrees or sexagesimal, the latter in hours when
// hours is set.
func field(row map[string]interface{}, hours bool, keys ...string) *float64 {
	for _, k := range keys {
		switch v := row[k].(type) {
		case float64:
			return &v
		case string:
			if d, ok := parseAngle(v, hours); ok {
				return &d
			}
		}
	}
	return nil
}

func parseAngle(s string, hours bool) (float64, bool) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "°"))
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == ':' })
	switch len(parts) {
	case 1:
		v, err := strconv.ParseFloat(parts[0], 64)
		return v, err == nil
	case 3:
		var neg byte
		if strings.HasPrefix(parts[0], "-") {
			neg = '-'
		}
		d, err1 := strconv.Atoi(strings.TrimLeft(parts[0], "+-"))
		m, err2 := strconv.Atoi(parts[1])
		sec, err3 := strconv.ParseFloat(parts[2], 64)
		if err1 != nil || err2 != nil || err3 != nil {
			return 0, false
		}
		v := unit.FromSexa(neg, d, m, sec)
		if hours {
			v *= 15
		}
		return v, true
	default:
		return 0, false
	}
}
