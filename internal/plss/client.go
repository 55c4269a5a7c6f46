package plss

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/collections-lab/georef-cli/internal/geometry"
	"github.com/collections-lab/georef-cli/internal/resilience"
)

const defaultBaseURL = "https://gis.blm.gov/arcgis/rest/services/Cadastral/" +
	"BLM_Natl_PLSS_CadNSDI/MapServer"

// Layer indices in the BLM cadastral map service.
const (
	layerTownships = 1
	layerSections  = 2
)

// Lookup resolves a township/range/section reference to the boxes of
// every matching section. Townships are not unique without a state, so
// the state abbreviation is required.
type Lookup interface {
	GetSections(ctx context.Context, state, twp, rng, sec string) ([]Box, error)
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBaseURL points the client at a different map service, mainly for
// tests.
func WithBaseURL(base string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(base, "/")
	}
}

// WithRateLimit sets the requests-per-second limit.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), int(math.Max(1, rps)))
	}
}

// WithRetryConfig overrides the retry behavior.
func WithRetryConfig(cfg resilience.RetryConfig) Option {
	return func(c *Client) {
		c.retryCfg = cfg
	}
}

// WithCircuitBreaker overrides the breaker guarding the map service.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) Option {
	return func(c *Client) {
		c.breaker = cb
	}
}

// Client queries the BLM PLSS webservices.
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	retryCfg   resilience.RetryConfig
	breaker    *resilience.CircuitBreaker
}

// NewClient creates a PLSS client with the given options.
func NewClient(opts ...Option) *Client {
	breakerCfg := resilience.DefaultCircuitBreakerConfig()
	// Bad references are caller errors; only service trouble opens
	// the circuit.
	breakerCfg.ShouldTrip = resilience.IsTransient
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultBaseURL,
		limiter:    rate.NewLimiter(5, 5),
		retryCfg:   resilience.DefaultRetryConfig(),
		breaker:    resilience.NewCircuitBreaker(breakerCfg),
	}
	c.retryCfg.OnRetry = resilience.RetryLogger("blm-plss", "query")
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetSections finds the boxes of every section matching the reference.
// A township/range pair can match several townships (surveys overlap);
// sections that fail to resolve are skipped with a warning.
func (c *Client) GetSections(ctx context.Context, state, twp, rng, sec string) ([]Box, error) {
	plssIDs, err := c.GetTownships(ctx, state, twp, rng)
	if err != nil {
		return nil, err
	}
	var boxes []Box
	for _, plssID := range plssIDs {
		box, err := c.GetSection(ctx, plssID, sec)
		if err != nil {
			zap.L().Warn("plss: section lookup failed",
				zap.String("plss_id", plssID),
				zap.String("section", sec),
				zap.Error(err))
			continue
		}
		if box != nil {
			boxes = append(boxes, *box)
		}
	}
	return boxes, nil
}

// GetTownships finds the PLSS ids of townships matching a township and
// range, e.g. ("WA", "T2N", "R1E").
func (c *Client) GetTownships(ctx context.Context, state, twp, rng string) ([]string, error) {
	state = strings.ToUpper(strings.TrimSpace(state))
	if len(state) != 2 || !isAlpha(state) {
		return nil, eris.Errorf("plss: bad state abbreviation %q", state)
	}
	twpNo, twpDir, err := splitDivision(twp, "TNS")
	if err != nil {
		return nil, eris.Wrapf(err, "plss: parse township %q", twp)
	}
	rngNo, rngDir, err := splitDivision(rng, "REW")
	if err != nil {
		return nil, eris.Wrapf(err, "plss: parse range %q", rng)
	}

	where := fmt.Sprintf(
		"STATEABBR='%s' AND TWNSHPNO='%s' AND TWNSHPDIR='%s'"+
			" AND RANGENO='%s' AND RANGEDIR='%s'",
		state, twpNo, twpDir, rngNo, rngDir)
	resp, err := c.query(ctx, layerTownships, url.Values{
		"where":     {where},
		"outFields": {"PLSSID,STATEABBR,TWNSHPNO,TWNSHPDIR,RANGENO,RANGEDIR"},
	})
	if err != nil {
		return nil, err
	}

	var plssIDs []string
	for _, feature := range resp.Features {
		attrs := feature.Attributes
		if attrString(attrs, "STATEABBR") == state &&
			attrString(attrs, "TWNSHPNO") == twpNo &&
			attrString(attrs, "TWNSHPDIR") == twpDir &&
			attrString(attrs, "RANGENO") == rngNo &&
			attrString(attrs, "RANGEDIR") == rngDir {
			if id := attrString(attrs, "PLSSID"); id != "" {
				plssIDs = append(plssIDs, id)
			}
		}
	}
	return plssIDs, nil
}

// GetSection finds the envelope of one section within a township. A
// section absent from the township returns nil, not an error.
func (c *Client) GetSection(ctx context.Context, plssID, sec string) (*Box, error) {
	secNo := zfill(digitsOnly(sec), 2)
	if secNo == "00" {
		return nil, eris.Errorf("plss: bad section %q", sec)
	}
	where := fmt.Sprintf(
		"PLSSID='%s' AND FRSTDIVNO='%s' AND FRSTDIVTYP='SN'", plssID, secNo)
	resp, err := c.query(ctx, layerSections, url.Values{
		"where":          {where},
		"outFields":      {"FRSTDIVNO"},
		"returnGeometry": {"true"},
	})
	if err != nil {
		return nil, err
	}

	for _, feature := range resp.Features {
		if attrString(feature.Attributes, "FRSTDIVNO") != secNo {
			continue
		}
		for _, ring := range feature.Geometry.Rings {
			box, err := ringEnvelope(ring, resp.SpatialReference.WKID())
			if err != nil {
				return nil, err
			}
			return &box, nil
		}
	}
	return nil, nil
}

// queryResponse is the subset of the ArcGIS query response the client
// reads.
type queryResponse struct {
	SpatialReference spatialReference `json:"spatialReference"`
	Features         []struct {
		Attributes map[string]any `json:"attributes"`
		Geometry   struct {
			Rings [][][]float64 `json:"rings"`
		} `json:"geometry"`
	} `json:"features"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type spatialReference struct {
	Wkid       int `json:"wkid"`
	LatestWkid int `json:"latestWkid"`
}

func (sr spatialReference) WKID() int {
	if sr.LatestWkid != 0 {
		return sr.LatestWkid
	}
	return sr.Wkid
}

func (c *Client) query(ctx context.Context, layer int, params url.Values) (*queryResponse, error) {
	params.Set("f", "json")
	reqURL := fmt.Sprintf("%s/%d/query?%s", c.baseURL, layer, params.Encode())

	return resilience.ExecuteVal(ctx, c.breaker, func(ctx context.Context) (*queryResponse, error) {
		return resilience.DoVal(ctx, c.retryCfg, func(ctx context.Context) (*queryResponse, error) {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, eris.Wrap(err, "plss: rate limit")
			}
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
			if err != nil {
				return nil, eris.Wrap(err, "plss: build request")
			}
			resp, err := c.httpClient.Do(req)
			if err != nil {
				return nil, eris.Wrap(err, "plss: request")
			}
			defer resp.Body.Close() //nolint:errcheck

			if resp.StatusCode != http.StatusOK {
				err := eris.Errorf("plss: status %d", resp.StatusCode)
				if resilience.IsTransientHTTPStatus(resp.StatusCode) {
					return nil, resilience.NewTransientError(err, resp.StatusCode)
				}
				return nil, err
			}
			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return nil, eris.Wrap(err, "plss: read body")
			}
			var parsed queryResponse
			if err := json.Unmarshal(body, &parsed); err != nil {
				return nil, eris.Wrap(err, "plss: parse response")
			}
			if parsed.Error != nil {
				return nil, eris.Errorf("plss: service error %d: %s",
					parsed.Error.Code, parsed.Error.Message)
			}
			return &parsed, nil
		})
	})
}

// ringEnvelope converts a polygon ring in the response's spatial
// reference to a lat/lng box.
func ringEnvelope(ring [][]float64, wkid int) (Box, error) {
	if len(ring) == 0 {
		return Box{}, eris.New("plss: empty ring")
	}
	minLat, minLng := math.Inf(1), math.Inf(1)
	maxLat, maxLng := math.Inf(-1), math.Inf(-1)
	for _, coord := range ring {
		if len(coord) < 2 {
			continue
		}
		lng, lat := coord[0], coord[1]
		switch wkid {
		case 0, 4326:
		case 3857, 102100:
			lng, lat = webMercatorToLatLng(coord[0], coord[1])
		default:
			return Box{}, eris.Errorf("plss: unsupported spatial reference %d", wkid)
		}
		minLat, maxLat = math.Min(minLat, lat), math.Max(maxLat, lat)
		minLng, maxLng = math.Min(minLng, lng), math.Max(maxLng, lng)
	}
	shape, err := geometry.NewBox(minLat, minLng, maxLat, maxLng)
	if err != nil {
		return Box{}, eris.Wrap(err, "plss: section envelope")
	}
	return Box{Shape: shape}, nil
}

const earthRadiusM = 6378137.0

func webMercatorToLatLng(x, y float64) (lng, lat float64) {
	lng = x / earthRadiusM * 180 / math.Pi
	lat = (2*math.Atan(math.Exp(y/earthRadiusM)) - math.Pi/2) * 180 / math.Pi
	return lng, lat
}

// attrString reads an ArcGIS attribute as a string; the service types
// some id columns as numbers.
func attrString(attrs map[string]any, key string) string {
	switch v := attrs[key].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	default:
		return ""
	}
}

var reDigits = regexp.MustCompile(`\d+`)

// splitDivision splits "T2N" into a zero-padded number and direction.
func splitDivision(val, cutset string) (string, string, error) {
	val = strings.ToUpper(strings.TrimSpace(val))
	if val == "" {
		return "", "", eris.New("plss: empty division")
	}
	dir := val[len(val)-1:]
	if !strings.Contains(cutset[1:], dir) {
		return "", "", eris.Errorf("plss: bad direction %q", dir)
	}
	no := digitsOnly(strings.Trim(val, cutset))
	if no == "" {
		return "", "", eris.New("plss: missing number")
	}
	return zfill(no, 3), dir, nil
}

func digitsOnly(val string) string {
	return strings.Join(reDigits.FindAllString(val, -1), "")
}

func zfill(val string, width int) string {
	for len(val) < width {
		val = "0" + val
	}
	return val
}

func isAlpha(val string) bool {
	for _, r := range val {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
