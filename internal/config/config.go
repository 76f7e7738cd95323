package config

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/i474232898/transit-feed/internal/ephemeris"
	"github.com/i474232898/transit-feed/internal/geo"
	"github.com/i474232898/transit-feed/internal/transit"
	"github.com/i474232898/transit-feed/internal/transit/sources"
)

// EnvPrefix prefixes environment overrides, e.g. TRANSITFEED_OUTPUT_PATH.
const EnvPrefix = "TRANSITFEED"

var validate = validator.New()

type OutputConfig struct {
	Path      string        `mapstructure:"path" validate:"required"`
	RangeDays int           `mapstructure:"range_days" validate:"gte=1,lte=3660"`
	RangeStep time.Duration `mapstructure:"range_step" validate:"gt=0"`
}

type RemoteConfig struct {
	Disabled       bool          `mapstructure:"disabled"`
	HorizonsURL    string        `mapstructure:"horizons_url" validate:"omitempty,url"`
	MiriadeURL     string        `mapstructure:"miriade_url" validate:"omitempty,url"`
	Timeout        time.Duration `mapstructure:"timeout" validate:"gt=0"`
	MaxRetries     int           `mapstructure:"max_retries" validate:"gte=0,lte=10"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff" validate:"gt=0"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff" validate:"gtefield=InitialBackoff"`
}

type EphemerisConfig struct {
	VSOP87Dir    string `mapstructure:"vsop87_dir"`
	ElementsFile string `mapstructure:"elements_file"`
}

type FallbackConfig struct {
	Files       []string      `mapstructure:"files"`
	MaxDistance time.Duration `mapstructure:"max_distance" validate:"gte=0"`
}

type PlaceholderConfig struct {
	Longitude float64 `mapstructure:"longitude" validate:"gte=-360,lte=360"`
	Latitude  float64 `mapstructure:"latitude" validate:"gte=-90,lte=90"`
}

type HousesConfig struct {
	System string `mapstructure:"system" validate:"len=1"`
}

type PartsConfig struct {
	Set       string `mapstructure:"set"`
	Harmonics []int  `mapstructure:"harmonics" validate:"dive,gte=1,lte=360"`
}

type HTTPConfig struct {
	Addr string `mapstructure:"addr" validate:"required"`
}

type ScheduleConfig struct {
	Interval time.Duration `mapstructure:"interval" validate:"gte=1m"`
	Timeout  time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

type StoreConfig struct {
	MaxHistory int           `mapstructure:"max_history" validate:"gte=0"`
	MaxAge     time.Duration `mapstructure:"max_age" validate:"gte=0"`
}

// SiteConfig is an observer site given either by coordinates or by a place
// to geocode.
type SiteConfig struct {
	Name      string   `mapstructure:"name" validate:"required"`
	Latitude  *float64 `mapstructure:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude *float64 `mapstructure:"longitude" validate:"omitempty,gte=-180,lte=180"`
	Elevation float64  `mapstructure:"elevation"`
	City      string   `mapstructure:"city"`
	State     string   `mapstructure:"state"`
	Country   string   `mapstructure:"country"`
}

// BodyConfig describes one tracked body.
type BodyConfig struct {
	Name      string   `mapstructure:"name" validate:"required"`
	Category  string   `mapstructure:"category" validate:"required"`
	RemoteID  string   `mapstructure:"remote_id"`
	MiriadeID string   `mapstructure:"miriade_id"`
	LocalCode *int     `mapstructure:"local_code" validate:"omitempty,gte=0"`
	RA        *float64 `mapstructure:"ra" validate:"omitempty,gte=0,lt=360"`
	Dec       *float64 `mapstructure:"dec" validate:"omitempty,gte=-90,lte=90"`
	Chain     []string `mapstructure:"chain"`
}

type AppConfig struct {
	Output        OutputConfig        `mapstructure:"output"`
	Workers       int                 `mapstructure:"workers" validate:"gte=1,lte=64"`
	Remote        RemoteConfig        `mapstructure:"remote"`
	Ephemeris     EphemerisConfig     `mapstructure:"ephemeris"`
	Fallback      FallbackConfig      `mapstructure:"fallback"`
	Placeholder   PlaceholderConfig   `mapstructure:"placeholder"`
	Houses        HousesConfig        `mapstructure:"houses"`
	Parts         PartsConfig         `mapstructure:"parts"`
	Chains        map[string][]string `mapstructure:"chains"`
	ForceFallback []string            `mapstructure:"force_fallback"`
	Sites         []SiteConfig        `mapstructure:"sites" validate:"dive"`
	Natal         []string            `mapstructure:"natal"`
	Bodies        []BodyConfig        `mapstructure:"bodies" validate:"dive"`
	HTTP          HTTPConfig          `mapstructure:"http"`
	Schedule      ScheduleConfig      `mapstructure:"schedule"`
	Store         StoreConfig         `mapstructure:"store"`

	// GeocoderAPIKey is read from GEOCODER_API_KEY only.
	GeocoderAPIKey string `mapstructure:"-"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("output.path", "docs/feed_now.json")
	v.SetDefault("output.range_days", 60)
	v.SetDefault("output.range_step", "24h")
	v.SetDefault("workers", 4)
	v.SetDefault("remote.disabled", false)
	v.SetDefault("remote.horizons_url", sources.DefaultHorizonsURL)
	v.SetDefault("remote.miriade_url", sources.DefaultMiriadeURL)
	v.SetDefault("remote.timeout", "30s")
	v.SetDefault("remote.max_retries", 2) // three attempts in all
	v.SetDefault("remote.initial_backoff", "500ms")
	v.SetDefault("remote.max_backoff", "5s")
	v.SetDefault("ephemeris.vsop87_dir", "ephe/vsop87")
	v.SetDefault("ephemeris.elements_file", "")
	v.SetDefault("fallback.max_distance", "72h")
	v.SetDefault("placeholder.longitude", 0.0)
	v.SetDefault("placeholder.latitude", 0.0)
	v.SetDefault("houses.system", "P")
	v.SetDefault("parts.set", "hellenistic")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("schedule.interval", "15m")
	v.SetDefault("schedule.timeout", "2m")
	v.SetDefault("store.max_history", 96) // roughly 24h at 15-minute intervals
	v.SetDefault("store.max_age", "24h")
}

// Load reads configuration from path (or transitfeed.yaml in . or ./configs
// when path is empty), TRANSITFEED_* environment variables and .env.
func Load(path string) (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("INFO: No .env file found or error loading it: %v", err)
	}

	v := viper.New()
	setDefaults(v)
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("transitfeed")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		log.Printf("INFO: no config file found; using defaults")
	} else {
		log.Printf("INFO: using config file %s", v.ConfigFileUsed())
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.GeocoderAPIKey = os.Getenv("GEOCODER_API_KEY")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field ranges and cross-references.
func (c *AppConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if len(c.Bodies) == 0 {
		return fmt.Errorf("invalid config: %w", transit.ErrNoBodies)
	}
	if !ephemeris.IsHouseSystem(c.HouseSystem()) {
		return fmt.Errorf("invalid config: %w: %q", ephemeris.ErrUnsupportedHouseSystem, c.Houses.System)
	}

	for _, s := range c.Sites {
		hasCoords := s.Latitude != nil && s.Longitude != nil
		if !hasCoords && s.City == "" {
			return fmt.Errorf("invalid config: site %s needs latitude and longitude or a city", s.Name)
		}
		if (s.Latitude == nil) != (s.Longitude == nil) {
			return fmt.Errorf("invalid config: site %s has only one coordinate", s.Name)
		}
	}

	seen := make(map[string]bool, len(c.Bodies))
	for _, b := range c.Bodies {
		key := strings.ToLower(b.Name)
		if seen[key] {
			return fmt.Errorf("invalid config: duplicate body %q", b.Name)
		}
		seen[key] = true
		if _, err := transit.ParseCategory(b.Category); err != nil {
			return fmt.Errorf("invalid config: body %s: %w", b.Name, err)
		}
		if err := checkLabels(b.Chain); err != nil {
			return fmt.Errorf("invalid config: body %s: %w", b.Name, err)
		}
		if (b.RA == nil) != (b.Dec == nil) {
			return fmt.Errorf("invalid config: body %s needs both ra and dec", b.Name)
		}
	}
	for cat, chain := range c.Chains {
		if _, err := transit.ParseCategory(cat); err != nil {
			return fmt.Errorf("invalid config: chains: %w", err)
		}
		if err := checkLabels(chain); err != nil {
			return fmt.Errorf("invalid config: chains.%s: %w", cat, err)
		}
	}
	for _, cat := range c.ForceFallback {
		if _, err := transit.ParseCategory(cat); err != nil {
			return fmt.Errorf("invalid config: force_fallback: %w", err)
		}
	}
	return nil
}

func checkLabels(chain []string) error {
	for _, l := range chain {
		if !transit.IsSourceLabel(l) {
			return fmt.Errorf("unknown source %q", l)
		}
	}
	return nil
}

// HouseSystem returns the configured house-system designator.
func (c *AppConfig) HouseSystem() byte {
	if c.Houses.System == "" {
		return ephemeris.Placidus
	}
	return strings.ToUpper(c.Houses.System)[0]
}

// TransitBodies converts the body catalogue.
func (c *AppConfig) TransitBodies() ([]transit.Body, error) {
	out := make([]transit.Body, 0, len(c.Bodies))
	for _, bc := range c.Bodies {
		cat, err := transit.ParseCategory(bc.Category)
		if err != nil {
			return nil, fmt.Errorf("body %s: %w", bc.Name, err)
		}
		b := transit.Body{
			Name:      bc.Name,
			Category:  cat,
			RemoteID:  bc.RemoteID,
			MiriadeID: bc.MiriadeID,
			Chain:     bc.Chain,
		}
		if bc.LocalCode != nil {
			code := *bc.LocalCode
			b.LocalCode = &code
		}
		if bc.RA != nil && bc.Dec != nil {
			b.Equatorial = &transit.Equatorial{RA: *bc.RA, Dec: *bc.Dec}
		}
		if cat == transit.CategoryFixedStar && b.Equatorial == nil {
			return nil, fmt.Errorf("fixed star %s needs ra and dec", bc.Name)
		}
		out = append(out, b)
	}
	return out, nil
}

// ResolverOptions returns the configured chains and forced fallbacks.
func (c *AppConfig) ResolverOptions() transit.ResolverOptions {
	opts := transit.ResolverOptions{
		Chains:        make(map[transit.Category][]string, len(c.Chains)),
		ForceFallback: make(map[transit.Category]bool, len(c.ForceFallback)),
	}
	for name, chain := range c.Chains {
		if cat, err := transit.ParseCategory(name); err == nil {
			opts.Chains[cat] = chain
		}
	}
	for _, name := range c.ForceFallback {
		if cat, err := transit.ParseCategory(name); err == nil {
			opts.ForceFallback[cat] = true
		}
	}
	return opts
}

// HTTPClientConfig returns the remote sources' HTTP settings.
func (c *AppConfig) HTTPClientConfig() sources.HTTPClientConfig {
	return sources.HTTPClientConfig{
		Client:  &http.Client{},
		Timeout: c.Remote.Timeout,
		Backoff: sources.BackoffConfig{
			MaxRetries:      c.Remote.MaxRetries,
			InitialInterval: c.Remote.InitialBackoff,
			MaxInterval:     c.Remote.MaxBackoff,
		},
	}
}

// ResolveSites turns site entries into observer sites, geocoding those
// given as places. g may be nil when every site has coordinates.
func (c *AppConfig) ResolveSites(g geo.Geocoder) ([]geo.Site, error) {
	sites := make([]geo.Site, 0, len(c.Sites))
	for _, sc := range c.Sites {
		if sc.Latitude != nil && sc.Longitude != nil {
			s := geo.Site{Name: sc.Name, Latitude: *sc.Latitude, Longitude: *sc.Longitude, Elevation: sc.Elevation}
			if err := s.Validate(); err != nil {
				return nil, fmt.Errorf("site %s: %w", sc.Name, err)
			}
			sites = append(sites, s)
			continue
		}
		if g == nil {
			return nil, fmt.Errorf("site %s: %w", sc.Name, geo.ErrNoAPIKey)
		}
		s, err := geo.Resolve(g, sc.Name, geo.Place{City: sc.City, State: sc.State, Country: sc.Country}, sc.Elevation)
		if err != nil {
			return nil, fmt.Errorf("site %s: %w", sc.Name, err)
		}
		sites = append(sites, s)
	}
	return sites, nil
}

// LoadCharts reads the configured natal chart files.
func (c *AppConfig) LoadCharts() ([]transit.NatalChart, error) {
	charts := make([]transit.NatalChart, 0, len(c.Natal))
	seen := make(map[string]bool, len(c.Natal))
	for _, p := range c.Natal {
		chart, err := transit.LoadNatalChart(p)
		if err != nil {
			return nil, err
		}
		if seen[chart.Name] {
			return nil, fmt.Errorf("duplicate natal chart %q", chart.Name)
		}
		seen[chart.Name] = true
		charts = append(charts, chart)
	}
	return charts, nil
}
