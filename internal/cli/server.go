package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lead-gate-service/internal/app"
	"lead-gate-service/internal/config"
	"lead-gate-service/internal/domain"
	"lead-gate-service/internal/infra/cloudfn"
	"lead-gate-service/internal/infra/memory"
	pgloader "lead-gate-service/internal/infra/postgres"
	redisinfra "lead-gate-service/internal/infra/redis"
	transport "lead-gate-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the gated assessment server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.BankLoader = memory.NewStaticBankLoader(sampleBanks())
	if pool != nil {
		loader = pgloader.NewBankLoader(pool)
	}

	bankTTL := config.TTLDuration(cfg.Bank.TTL, 10*time.Minute)
	var banks app.BankRepository
	if redisClient != nil {
		banks = redisinfra.NewBankRepository(redisClient, loader, bankTTL)
	} else {
		banks = memory.NewBankRepository(loader, bankTTL)
	}

	var sessions app.SessionStore
	if redisClient != nil {
		sessions = redisinfra.NewSessionStore(redisClient)
	} else {
		sessions = memory.NewSessionStore()
	}

	var otp app.OTPProvider
	if cfg.OTP.SendURL != "" && cfg.OTP.VerifyURL != "" {
		otp = cloudfn.NewOTPClient(cfg.OTP.SendURL, cfg.OTP.VerifyURL, config.TTLDuration(cfg.OTP.Timeout, 10*time.Second))
	} else {
		log.Printf("otp urls not configured, using loopback provider (accepts any 6-digit code)")
		otp = loopbackOTPProvider{}
	}

	var notifier app.Notifier
	if cfg.Notify.URL != "" {
		notifier = cloudfn.NewNotifier(cfg.Notify.URL, config.TTLDuration(cfg.Notify.Timeout, 10*time.Second))
	}

	service := app.NewFlowService(banks, sessions, otp, notifier, featureConfigs(cfg))
	wsHandler := transport.NewWSHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting lead gate service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// featureConfigs maps the YAML feature section to runtime configs, falling
// back to the three built-in flows when none are configured.
func featureConfigs(cfg config.Config) map[string]app.FeatureConfig {
	if len(cfg.Features) == 0 {
		return defaultFeatures()
	}
	features := make(map[string]app.FeatureConfig, len(cfg.Features))
	for name, f := range cfg.Features {
		mode := domain.ModeSequential
		if f.Mode == string(domain.ModeFreeNav) {
			mode = domain.ModeFreeNav
		}
		threshold := f.PassThreshold
		if threshold == 0 {
			threshold = 0.8
		}
		batch := f.BatchSize
		if batch == 0 {
			batch = 5
		}
		features[name] = app.FeatureConfig{
			BankID:        f.Bank,
			BatchSize:     batch,
			PassThreshold: threshold,
			Mode:          mode,
			RewardPrefix:  f.RewardPrefix,
			RewardSuffix:  f.RewardSuffix,
			RewardTTL:     config.TTLDuration(f.RewardTTL, 15*time.Minute),
			Recipients:    f.Recipients,
		}
	}
	return features
}

func defaultFeatures() map[string]app.FeatureConfig {
	return map[string]app.FeatureConfig{
		"scholarship": {
			BankID:        "scholarship",
			BatchSize:     5,
			PassThreshold: 0.8,
			Mode:          domain.ModeSequential,
			RewardPrefix:  "SCH",
			RewardSuffix:  "26",
			RewardTTL:     15 * time.Minute,
		},
		"careers": {
			BankID:        "careers",
			BatchSize:     5,
			PassThreshold: 0.8,
			Mode:          domain.ModeFreeNav,
			RewardPrefix:  "JOB",
			RewardSuffix:  "26",
			RewardTTL:     15 * time.Minute,
		},
		"tool-gate": {
			BankID:        "scholarship",
			BatchSize:     3,
			PassThreshold: 0.6,
			Mode:          domain.ModeSequential,
			RewardPrefix:  "AI",
			RewardSuffix:  "26",
			RewardTTL:     15 * time.Minute,
		},
	}
}

// loopbackOTPProvider is the dev fallback when no OTP Cloud Function is
// configured. It never sends SMS and accepts any well-formed code.
type loopbackOTPProvider struct{}

func (loopbackOTPProvider) SendCode(_ context.Context, phoneE164 string) error {
	log.Printf("loopback otp: would send code to %s", phoneE164)
	return nil
}

func (loopbackOTPProvider) VerifyCode(_ context.Context, _, _ string) (app.VerifyOutcome, error) {
	return app.VerifyOutcome{Verified: true}, nil
}

// sampleBanks provides demo content; production loads banks from Postgres.
func sampleBanks() map[string]domain.QuestionBank {
	return map[string]domain.QuestionBank{
		"scholarship": {
			ID: "scholarship",
			Questions: []domain.Question{
				{ID: 1, Prompt: "What does CNC stand for?", Options: []string{"Computer Numerical Control", "Central Network Computing", "Certified National Certificate", "Controlled Numeric Chart"}, CorrectIndex: 0, Category: "technical"},
				{ID: 2, Prompt: "Which tool measures voltage?", Options: []string{"Micrometer", "Multimeter", "Vernier caliper", "Torque wrench"}, CorrectIndex: 1, Category: "technical"},
				{ID: 3, Prompt: "A train travels 120 km in 2 hours. Its speed is:", Options: []string{"40 km/h", "50 km/h", "60 km/h", "80 km/h"}, CorrectIndex: 2, Category: "aptitude"},
				{ID: 4, Prompt: "Which number completes the series 2, 4, 8, 16, __?", Options: []string{"20", "24", "30", "32"}, CorrectIndex: 3, Category: "aptitude"},
				{ID: 5, Prompt: "Which metal is the best conductor of electricity?", Options: []string{"Iron", "Silver", "Aluminium", "Zinc"}, CorrectIndex: 1, Category: "technical"},
				{ID: 6, Prompt: "If 5 machines finish a job in 10 days, 10 machines take:", Options: []string{"5 days", "10 days", "15 days", "20 days"}, CorrectIndex: 0, Category: "aptitude"},
				{ID: 7, Prompt: "A lathe is primarily used for:", Options: []string{"Welding", "Turning", "Casting", "Forging"}, CorrectIndex: 1, Category: "technical"},
				{ID: 8, Prompt: "25% of 200 is:", Options: []string{"25", "40", "50", "75"}, CorrectIndex: 2, Category: "aptitude"},
			},
		},
		"careers": {
			ID: "careers",
			Questions: []domain.Question{
				{ID: 1, Prompt: "A customer is unhappy with a delay. What do you do first?", Options: []string{"Blame the supplier", "Listen and acknowledge", "Offer a discount", "Escalate to manager"}, CorrectIndex: 1, Category: "softskills"},
				{ID: 2, Prompt: "Which comes next: 3, 6, 12, 24, __?", Options: []string{"36", "40", "48", "54"}, CorrectIndex: 2, Category: "aptitude"},
				{ID: 3, Prompt: "Safety glasses are required when:", Options: []string{"Only during welding", "Any machining operation", "Only for trainees", "Never"}, CorrectIndex: 1, Category: "safety"},
				{ID: 4, Prompt: "A team member keeps missing deadlines. You:", Options: []string{"Report immediately", "Discuss and offer help", "Ignore it", "Take over their work"}, CorrectIndex: 1, Category: "softskills"},
				{ID: 5, Prompt: "What fraction of an hour is 45 minutes?", Options: []string{"1/2", "2/3", "3/4", "4/5"}, CorrectIndex: 2, Category: "aptitude"},
				{ID: 6, Prompt: "The first step before operating any machine is:", Options: []string{"Start the spindle", "Check guards and mountings", "Load raw material", "Call the supervisor"}, CorrectIndex: 1, Category: "safety"},
			},
		},
	}
}
