package pipeline

import (
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb/geojson"
	"github.com/rotisserie/eris"

	"github.com/biscayne-labs/resilience-cli/internal/fetcher"
)

// SourceConfig names the three upstream datasets.
type SourceConfig struct {
	ProjectsURL  string `yaml:"projects_url" mapstructure:"projects_url"`
	RiskURL      string `yaml:"risk_url" mapstructure:"risk_url"`
	SideTableURL string `yaml:"side_table_url" mapstructure:"side_table_url"`
}

// SourceLoader implements Loader over HTTP, FTP, and local files. The scheme
// of each configured URL picks the transport; bare paths are read from disk.
type SourceLoader struct {
	http    fetcher.Fetcher
	ftp     *fetcher.FTPFetcher
	cfg     SourceConfig
	binding SideTableBinding
	tempDir string
}

// NewSourceLoader creates a SourceLoader. httpFetcher handles http(s) URLs
// and ftpFetcher handles ftp URLs; either may be nil if the configured
// sources never use that scheme.
func NewSourceLoader(httpFetcher fetcher.Fetcher, ftpFetcher *fetcher.FTPFetcher, cfg SourceConfig, binding SideTableBinding) *SourceLoader {
	return &SourceLoader{
		http:    httpFetcher,
		ftp:     ftpFetcher,
		cfg:     cfg,
		binding: binding,
		tempDir: os.TempDir(),
	}
}

// Projects fetches and parses the primary project feature collection.
func (l *SourceLoader) Projects(ctx context.Context) (*geojson.FeatureCollection, error) {
	return l.featureCollection(ctx, l.cfg.ProjectsURL, "projects")
}

// Risk fetches and parses the risk/census tract feature collection.
func (l *SourceLoader) Risk(ctx context.Context) (*geojson.FeatureCollection, error) {
	return l.featureCollection(ctx, l.cfg.RiskURL, "risk")
}

// SideTable fetches and parses the auxiliary side table. CSV is the default;
// a .xlsx URL is downloaded and read sheet-first.
func (l *SourceLoader) SideTable(ctx context.Context) (SideTable, error) {
	if l.cfg.SideTableURL == "" {
		return nil, eris.New("loader: side table source not configured")
	}

	if strings.HasSuffix(strings.ToLower(l.cfg.SideTableURL), ".xlsx") {
		return l.sideTableXLSX(ctx)
	}

	rc, err := l.open(ctx, l.cfg.SideTableURL)
	if err != nil {
		return nil, eris.Wrap(err, "loader: open side table")
	}
	defer rc.Close() //nolint:errcheck

	return ParseSideTable(ctx, rc, l.binding)
}

func (l *SourceLoader) sideTableXLSX(ctx context.Context) (SideTable, error) {
	path := l.cfg.SideTableURL
	if isRemote(path) {
		local := filepath.Join(l.tempDir, "sidetable.xlsx")
		if err := l.downloadToFile(ctx, path, local); err != nil {
			return nil, err
		}
		path = local
	}

	rows, err := fetcher.ReadXLSX(path, fetcher.XLSXOptions{})
	if err != nil {
		return nil, eris.Wrap(err, "loader: read side table xlsx")
	}
	if len(rows) == 0 {
		return SideTable{}, nil
	}
	return SideTableFromRows(rows[0], rows[1:], l.binding), nil
}

func (l *SourceLoader) featureCollection(ctx context.Context, rawURL, name string) (*geojson.FeatureCollection, error) {
	if rawURL == "" {
		return nil, eris.Errorf("loader: %s source not configured", name)
	}

	rc, err := l.open(ctx, rawURL)
	if err != nil {
		return nil, eris.Wrapf(err, "loader: open %s", name)
	}
	defer rc.Close() //nolint:errcheck

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, eris.Wrapf(err, "loader: read %s", name)
	}

	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, eris.Wrapf(err, "loader: parse %s geojson", name)
	}
	return fc, nil
}

// open returns a reader for the URL, picking the transport by scheme.
func (l *SourceLoader) open(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrapf(err, "loader: parse url %s", rawURL)
	}

	switch u.Scheme {
	case "http", "https":
		if l.http == nil {
			return nil, eris.New("loader: http fetcher not configured")
		}
		return l.http.Download(ctx, rawURL)
	case "ftp":
		if l.ftp == nil {
			return nil, eris.New("loader: ftp fetcher not configured")
		}
		return l.ftp.Download(ctx, rawURL)
	case "", "file":
		path := u.Path
		if u.Scheme == "" {
			path = rawURL
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "loader: open file %s", path)
		}
		return f, nil
	default:
		return nil, eris.Errorf("loader: unsupported scheme %q", u.Scheme)
	}
}

func (l *SourceLoader) downloadToFile(ctx context.Context, rawURL, path string) error {
	rc, err := l.open(ctx, rawURL)
	if err != nil {
		return err
	}
	defer rc.Close() //nolint:errcheck

	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "loader: create %s", path)
	}
	defer f.Close() //nolint:errcheck

	if _, err := io.Copy(f, rc); err != nil {
		return eris.Wrapf(err, "loader: write %s", path)
	}
	return nil
}

func isRemote(rawURL string) bool {
	return strings.HasPrefix(rawURL, "http://") ||
		strings.HasPrefix(rawURL, "https://") ||
		strings.HasPrefix(rawURL, "ftp://")
}
