// Command keygen issues keys for the dated license policy and prints the
// machine id of the current host.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"fbcarch/internal/config"
	"fbcarch/internal/infrastructure"
	"fbcarch/internal/license"
	"fbcarch/internal/security"
)

const dateLayout = "20060102"

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout, time.Now); err != nil {
		fmt.Fprintf(os.Stderr, "keygen: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer, now func() time.Time) error {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	machineID := fs.String("machine-id", "", "machine id to bind the key to (defaults to this host)")
	expires := fs.String("expires", "", "expiry date YYYYMMDD; the key stops working at its start")
	days := fs.Int("days", 0, "validity in days from today (alternative to -expires)")
	secret := fs.String("secret", "", "signing secret (defaults to the configured license secret)")
	length := fs.Int("length", 16, "signature characters to keep (1-64)")
	printID := fs.Bool("print-id", false, "print this host's machine id and exit")
	configFile := fs.String("config", "", "path to config.yaml")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configFile)
	if err != nil {
		return err
	}

	if *printID || *machineID == "" {
		fp := localFingerprint(ctx, cfg)
		if *printID {
			fmt.Fprintln(stdout, fp.String())
			return fp.Cause()
		}
		id, ok := fp.Value()
		if !ok {
			return fmt.Errorf("no -machine-id given and this host has none: %w", fp.Cause())
		}
		*machineID = id
	}

	expiry, err := expiryDate(*expires, *days, now())
	if err != nil {
		return err
	}

	if *secret == "" {
		*secret = cfg.License.Secret
	}

	if *length < cfg.License.MinSignatureLength {
		return fmt.Errorf("signature length %d is below the configured minimum %d", *length, cfg.License.MinSignatureLength)
	}

	key, err := license.IssueDatedKey(*machineID, expiry, *secret, *length)
	if err != nil {
		return err
	}

	fmt.Fprintln(stdout, key)
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFrom(path)
	}
	return config.Load()
}

func localFingerprint(ctx context.Context, cfg *config.Config) security.Fingerprint {
	logger := infrastructure.NewLoggerWithWriter(os.Stderr, "warn")
	provider := security.NewHostProvider(cfg.Fingerprint, logger)
	return security.NewDeriver(cfg.Fingerprint.Namespace, provider, logger).Derive(ctx)
}

// expiryDate resolves -expires or -days; exactly one must be set and the
// result must lie after today
func expiryDate(expires string, days int, today time.Time) (time.Time, error) {
	switch {
	case expires != "" && days != 0:
		return time.Time{}, errors.New("use either -expires or -days, not both")
	case expires != "":
		t, err := time.ParseInLocation(dateLayout, expires, time.Local)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid -expires %q: want YYYYMMDD", expires)
		}
		if !t.After(today) {
			return time.Time{}, fmt.Errorf("-expires %s is not in the future; the key would already be expired", expires)
		}
		return t, nil
	case days > 0:
		return today.AddDate(0, 0, days), nil
	case days < 0:
		return time.Time{}, fmt.Errorf("-days must be positive, got %d", days)
	default:
		return time.Time{}, errors.New("one of -expires or -days is required")
	}
}
