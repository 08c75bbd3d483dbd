package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/plantrace/plantrace/backend-go/internal/document"
)

type app struct {
	configFile string
	v          *viper.Viper
	logger     *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "planectl",
		Short: "Inspect and render floor plan data",
		Long: `planectl works on plan data in the load port format. A source is a
JSON file, "-" for stdin, "sample" for the built-in sample plan, or
"plan:<id>" to fetch the latest version from a running server.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.init,
	}

	root.PersistentFlags().StringVar(&a.configFile, "config", "", "config file (default: ./planectl.yaml or ~/.config/planectl/planectl.yaml)")
	root.PersistentFlags().String(cfgKeyServer, defaultServer, "plan server base URL")
	root.PersistentFlags().String(cfgKeyToken, "", "bearer token for the plan server")

	root.AddCommand(a.sampleCmd())
	root.AddCommand(a.validateCmd())
	root.AddCommand(a.probeCmd())
	root.AddCommand(a.renderCmd())
	return root
}

func (a *app) init(cmd *cobra.Command, args []string) error {
	v, err := loadConfig(cmd, a.configFile)
	if err != nil {
		return err
	}
	a.v = v
	a.logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: logLevel(v.GetString(cfgKeyLogLevel)),
	}))
	return nil
}

// readSource loads a plan in the load port format.
func (a *app) readSource(ctx context.Context, cmd *cobra.Command, source string) (*document.LoadResponse, error) {
	switch {
	case source == "sample":
		return document.NewSampleResponse("plan_sample"), nil
	case source == "-":
		return decodeResponse(cmd.InOrStdin())
	case strings.HasPrefix(source, "plan:"):
		return a.fetch(ctx, strings.TrimPrefix(source, "plan:"))
	default:
		f, err := os.Open(source)
		if err != nil {
			return nil, fmt.Errorf("open source: %w", err)
		}
		defer f.Close()
		return decodeResponse(f)
	}
}

// decodeResponse accepts a load response, or a bare save request which is
// wrapped as a successful load.
func decodeResponse(r io.Reader) (*document.LoadResponse, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("decode source: %w", err)
	}
	if _, ok := probe["Code"]; ok {
		var resp document.LoadResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			return nil, fmt.Errorf("decode load response: %w", err)
		}
		return &resp, nil
	}

	var req document.SaveRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("decode save request: %w", err)
	}
	return &document.LoadResponse{Code: 0, Data: req.PlanData()}, nil
}

func (a *app) fetch(ctx context.Context, planID string) (*document.LoadResponse, error) {
	base := strings.TrimRight(a.v.GetString(cfgKeyServer), "/")
	endpoint := base + "/api/plans/" + url.PathEscape(planID) + "/data"

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if token := a.v.GetString(cfgKeyToken); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch plan %s: %w", planID, err)
	}
	defer resp.Body.Close()

	a.logger.Debug("fetched plan", "plan", planID, "status", resp.StatusCode)
	// The load port answers failures with a JSON body too.
	return decodeResponse(resp.Body)
}

func printJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}
