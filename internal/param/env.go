package param

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/dmorgan81/kittenstudio/internal/log"
	"github.com/samber/lo"
)

// EnvFetcher reads names as environment variables. Lists are newline
// separated, which keeps prompts containing commas intact.
type EnvFetcher struct{}

func (EnvFetcher) Fetch(ctx context.Context, name string) (string, error) {
	log.FromContextOrDiscard(ctx).WithGroup("env").Debug("reading variable", "name", name)
	v, ok := os.LookupEnv(name)
	if !ok {
		return "", fmt.Errorf("environment variable %s is not set", name)
	}
	return v, nil
}

func (EnvFetcher) FetchAll(ctx context.Context, name string) ([]string, error) {
	log.FromContextOrDiscard(ctx).WithGroup("env").Debug("reading list variable", "name", name)
	lines := strings.Split(os.Getenv(name), "\n")
	return lo.FilterMap(lines, func(l string, _ int) (string, bool) {
		l = strings.TrimSpace(l)
		return l, l != ""
	}), nil
}
