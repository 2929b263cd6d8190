package locator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"qrattend/internal/config"
	"qrattend/lib/sl"
	"strings"
	"time"

	"github.com/biter777/countries"
)

// LocalNetwork is reported for loopback, private and unknown addresses.
const LocalNetwork = "Local Network"

const fields = "status,message,city,regionName,country,countryCode"

// Locator resolves a device address to "City, Region, Country" through an
// ip-api.com compatible endpoint. It never returns an error: when the lookup
// fails the address itself is returned, when disabled an empty string.
type Locator struct {
	hc      *http.Client
	baseURL string
	enabled bool
	log     *slog.Logger
}

type lookupResponse struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	City        string `json:"city"`
	RegionName  string `json:"regionName"`
	Country     string `json:"country"`
	CountryCode string `json:"countryCode"`
}

func New(conf config.Geo, logger *slog.Logger) *Locator {
	timeout := conf.Timeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Locator{
		hc:      &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(conf.LookupURL, "/"),
		enabled: conf.Enabled,
		log:     logger.With(sl.Module("locator")),
	}
}

func (l *Locator) Resolve(ctx context.Context, ip string) string {
	if IsLocal(ip) {
		return LocalNetwork
	}
	if !l.enabled {
		return ""
	}
	log := l.log.With(slog.String("ip", ip))

	t1 := time.Now()
	res, err := l.lookup(ctx, ip)
	if err != nil {
		log.With(
			sl.Err(err),
			slog.Float64("duration", time.Since(t1).Seconds()),
		).Warn("location lookup failed")
		return ip
	}
	location := res.format()
	if location == "" {
		log.With(slog.String("message", res.Message)).Debug("location not resolved")
		return ip
	}
	log.With(slog.String("location", location)).Debug("location resolved")
	return location
}

func (l *Locator) lookup(ctx context.Context, ip string) (*lookupResponse, error) {
	q := url.Values{}
	q.Set("fields", fields)
	endpoint := fmt.Sprintf("%s/%s?%s", l.baseURL, url.PathEscape(ip), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("lookup %s: %s", resp.Status, body)
	}
	var res lookupResponse
	if err = json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("decode lookup: %w", err)
	}
	return &res, nil
}

func (r *lookupResponse) format() string {
	if r.Status == "fail" || r.City == "" {
		return ""
	}
	country := r.Country
	if r.CountryCode != "" {
		if name := countries.ByName(r.CountryCode); name != countries.Unknown {
			country = name.String()
		}
	}
	if country == "" {
		return ""
	}
	parts := []string{r.City}
	if r.RegionName != "" && r.RegionName != r.City {
		parts = append(parts, r.RegionName)
	}
	parts = append(parts, country)
	return strings.Join(parts, ", ")
}

// IsLocal reports whether ip cannot be located on the public internet.
func IsLocal(ip string) bool {
	if ip == "" || ip == "unknown" {
		return true
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return true
	}
	return parsed.IsLoopback() || parsed.IsPrivate() || parsed.IsUnspecified() ||
		parsed.IsLinkLocalUnicast()
}
