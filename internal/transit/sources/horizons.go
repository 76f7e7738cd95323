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

	"github.com/sony/gobreaker"

	"github.com/i474232898/transit-feed/internal/common"
	"github.com/i474232898/transit-feed/internal/coords"
	"github.com/i474232898/transit-feed/internal/transit"
)

// DefaultHorizonsURL is the JPL Horizons API endpoint.
const DefaultHorizonsURL = "https://ssd.jpl.nasa.gov/api/horizons.api"

// horizonsQuantities selects astrometric RA/DEC (1), r (19), delta (20),
// elongation (23), phase angle (24), constellation (29) and observer
// ecliptic lon/lat (31).
const horizonsQuantities = "1,19,20,23,24,29,31"

// Horizons resolves bodies through the JPL Horizons observer table.
type Horizons struct {
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

// NewHorizons creates a Horizons source. An empty baseURL uses DefaultHorizonsURL.
func NewHorizons(baseURL string, cfg HTTPClientConfig) *Horizons {
	if baseURL == "" {
		baseURL = DefaultHorizonsURL
	}
	return &Horizons{
		baseURL: baseURL,
		httpCfg: cfg,
		circuit: newBreaker(transit.SourceHorizons),
	}
}

func (h *Horizons) Name() string {
	return transit.SourceHorizons
}

func (h *Horizons) Resolve(ctx context.Context, body transit.Body, at time.Time) (transit.Coordinates, error) {
	if body.RemoteID == "" {
		return transit.Coordinates{}, fmt.Errorf("%w: %s has no horizons id", transit.ErrNoResult, body.Name)
	}

	buildRequest := func(ctx context.Context) (*http.Request, error) {
		values := url.Values{}
		values.Set("format", "json")
		values.Set("COMMAND", quote(body.RemoteID))
		values.Set("OBJ_DATA", "'NO'")
		values.Set("MAKE_EPHEM", "'YES'")
		values.Set("EPHEM_TYPE", "'OBSERVER'")
		values.Set("CENTER", "'500@399'")
		values.Set("TLIST", quote(strconv.FormatFloat(coords.JulianDay(at), 'f', 6, 64)))
		values.Set("TLIST_TYPE", "'JD'")
		values.Set("TIME_TYPE", "'UT'")
		values.Set("QUANTITIES", quote(horizonsQuantities))
		values.Set("ANG_FORMAT", "'DEG'")
		values.Set("CSV_FORMAT", "'YES'")
		values.Set("EXTRA_PREC", "'YES'")

		u := fmt.Sprintf("%s?%s", h.baseURL, values.Encode())
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	}

	data, err := fetchWithResilience(ctx, h.httpCfg, h.circuit, buildRequest)
	if err != nil {
		return transit.Coordinates{}, err
	}

	var payload struct {
		Result string `json:"result"`
		Error  string `json:"error"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return transit.Coordinates{}, fmt.Errorf("decoding horizons response: %w", err)
	}
	if payload.Error != "" {
		return transit.Coordinates{}, fmt.Errorf("%w: horizons: %s", transit.ErrNoResult, strings.TrimSpace(payload.Error))
	}
	return parseHorizons(payload.Result, at)
}

// parseHorizons reads the first row of a CSV observer table. Ecliptic
// columns are preferred; astrometric RA/DEC are converted otherwise.
func parseHorizons(result string, at time.Time) (transit.Coordinates, error) {
	header, row, err := horizonsTable(result)
	if err != nil {
		return transit.Coordinates{}, err
	}

	var lon, lat, ra, dec *float64
	aux := &transit.Auxiliary{}
	for i, col := range header {
		if i >= len(row) {
			break
		}
		cell := strings.TrimSpace(row[i])
		switch {
		case common.HasAny(col, "ObsEcLon", "EclLon"):
			lon = common.OptionalDegrees(cell)
		case common.HasAny(col, "ObsEcLat", "EclLat"):
			lat = common.OptionalDegrees(cell)
		case strings.HasPrefix(col, "R.A."):
			ra = common.OptionalDegrees(cell)
		case strings.HasPrefix(col, "DEC"):
			dec = common.OptionalDegrees(cell)
		case col == "delta":
			aux.Delta = common.OptionalDegrees(cell)
		case col == "r":
			aux.R = common.OptionalDegrees(cell)
		case col == "S-O-T":
			aux.Elongation = common.OptionalDegrees(cell)
		case col == "S-T-O":
			aux.PhaseAngle = common.OptionalDegrees(cell)
		case col == "Cnst":
			aux.Constellation = cell
		}
	}
	aux.RA, aux.Dec = ra, dec

	switch {
	case lon != nil && lat != nil:
		return transit.Coordinates{Lon: coords.Normalize(*lon), Lat: *lat, Aux: aux}, nil
	case ra != nil && dec != nil:
		l, b := coords.FromJ2000(*ra, *dec, at)
		return transit.Coordinates{Lon: l, Lat: b, Aux: aux}, nil
	default:
		return transit.Coordinates{}, fmt.Errorf("%w: horizons table has no position columns", transit.ErrNoResult)
	}
}

func horizonsTable(result string) ([]string, []string, error) {
	lines := strings.Split(result, "\n")
	soe := -1
	for i, l := range lines {
		if strings.TrimSpace(l) == "$$SOE" {
			soe = i
			break
		}
	}
	if soe < 0 || soe+1 >= len(lines) {
		return nil, nil, fmt.Errorf("%w: horizons table missing $$SOE", transit.ErrNoResult)
	}

	var header []string
	for i := soe - 1; i >= 0; i-- {
		l := strings.TrimSpace(lines[i])
		if l == "" || strings.Trim(l, "*") == "" {
			continue
		}
		header = splitCSV(l)
		break
	}
	row := strings.TrimSpace(lines[soe+1])
	if header == nil || row == "" || row == "$$EOE" {
		return nil, nil, fmt.Errorf("%w: horizons table is empty", transit.ErrNoResult)
	}
	return header, splitCSV(row), nil
}

func splitCSV(line string) []string {
	cells := strings.Split(line, ",")
	for i := range cells {
		cells[i] = strings.TrimSpace(cells[i])
	}
	return cells
}

func quote(s string) string {
	return "'" + s + "'"
}
