package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/brizzai/idverify/internal/auth"
	"github.com/brizzai/idverify/internal/auth/constants"
	"github.com/brizzai/idverify/internal/auth/models"
	"github.com/brizzai/idverify/internal/auth/providers"
	"github.com/brizzai/idverify/internal/config"
	"github.com/brizzai/idverify/internal/logger"
	"github.com/brizzai/idverify/internal/metrics"
	"github.com/brizzai/idverify/internal/server"
	"github.com/joho/godotenv"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const defaultVerifyTimeout = 10 * time.Second

func main() {
	Execute()
}

var (
	configFile string
	cfg        *config.Config

	verifyCode   string
	verifyOutput string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "idverify",
	Short: "Diia identity verification provider",
	Long: `idverify verifies a Diia account by exchanging the OAuth authorization code
issued by the Diia consent flow for an access token. A token naming a user_id
counts as verified identity and yields the record {"id": "<user_id>"}.`,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the verification HTTP API",
	RunE:  runServe,
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify a single authorization code and print the result",
	RunE:  runVerify,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		pterm.Info.Println(config.GetVersionInfo())
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		versionFlag, _ := cmd.Flags().GetBool("version")
		if versionFlag {
			pterm.Info.Println(config.GetVersionInfo())
			os.Exit(0)
		}
		return setup(cmd)
	}

	if err := rootCmd.Execute(); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to the YAML config file")
	rootCmd.PersistentFlags().BoolP("version", "v", false, "Show version information")
	config.InitFlags(rootCmd.PersistentFlags())

	verifyCmd.Flags().StringVar(&verifyCode, "code", "", "Authorization code returned by the Diia consent flow")
	verifyCmd.Flags().StringVarP(&verifyOutput, "output", "o", "json", "Output format (json|yaml)")
	_ = verifyCmd.MarkFlagRequired("code")

	rootCmd.AddCommand(serveCmd, verifyCmd, versionCmd)
}

// setup loads .env, the configuration and the global logger
func setup(cmd *cobra.Command) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	loaded, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg = loaded

	if err := logger.InitLogger(&cfg.Logging); err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	defer func() { _ = logger.Sync() }()

	if err := cfg.Validate(); err != nil {
		return err
	}

	app := fx.New(
		fx.Supply(cfg),
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger.GetLogger()}
		}),
		providers.Module,
		metrics.Module,
		auth.Module,
		server.Module,
		fx.Decorate(metrics.Instrument),
	)
	if err := app.Err(); err != nil {
		return err
	}

	logger.Info("Starting idverify", zap.String("provider", constants.DiiaProviderType))
	app.Run()
	return nil
}

func runVerify(cmd *cobra.Command, args []string) error {
	defer func() { _ = logger.Sync() }()

	provider, err := providers.NewDiiaProvider(&cfg.Diia)
	if err != nil {
		return err
	}

	timeout := cfg.Diia.Timeout
	if timeout <= 0 {
		timeout = defaultVerifyTimeout
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout+timeout/2)
	defer cancel()

	result := provider.Verify(ctx, &models.RequestPayload{
		Type:   provider.Type(),
		Proofs: models.Proofs{"code": verifyCode},
	})

	out, err := render(result, verifyOutput)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)

	if !result.Valid {
		return errors.New("verification failed")
	}
	pterm.Success.Printfln("Verified Diia user %s", pterm.LightGreen(result.Record[constants.RecordID]))
	return nil
}

func render(result *models.VerifiedPayload, format string) (string, error) {
	switch format {
	case "json", "":
		b, err := json.MarshalIndent(result, "", "  ")
		return string(b), err
	case "yaml":
		b, err := yaml.Marshal(result)
		return string(b), err
	default:
		return "", fmt.Errorf("unsupported output format %q", format)
	}
}
