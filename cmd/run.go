package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spigell/licita-radar/internal/ai"
	"github.com/spigell/licita-radar/internal/ai/gemini"
	"github.com/spigell/licita-radar/internal/classify"
	"github.com/spigell/licita-radar/internal/criteria"
	"github.com/spigell/licita-radar/internal/filtering"
	"github.com/spigell/licita-radar/internal/logger"
	"github.com/spigell/licita-radar/internal/pncp"
	"github.com/spigell/licita-radar/internal/procurement"
	"github.com/spigell/licita-radar/internal/search"
	"github.com/spigell/licita-radar/internal/secrets"
	"github.com/spigell/licita-radar/internal/sector"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	PromptShow                = "Show records"
	PromptNo                  = "No"
	PromptBack                = "back"
	PromptReportByOrgs        = "Report by organizations"
	PromptManualDismiss       = "Dismiss records in manual mode"
	PromptAppendToExcludeFile = "Append all records to exclude file"
	PromptRecordsToFile       = "Dump records to file"
)

var errExit = errors.New("exit requested")

var prompt = promptui.Select{
	Label: "Proceed?",
	Items: []string{PromptShow, PromptNo, PromptReportByOrgs, PromptManualDismiss, PromptRecordsToFile},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch procurements and show the ones relevant to the profile",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("terms", "t", "", "comma separated free text terms to narrow the results")
	runCmd.Flags().StringP("since", "s", "", "only records published after a duration (72h, 7d) or a date (2006-01-02)")
	runCmd.Flags().BoolP("auto-approve", "y", false, "do not ask for confirmation, just show the found records")
	runCmd.Flags().StringP("exclude-file", "e", "", "special file with dismissed records. Default is unset.")

	viper.BindPFlag("exclude-file", runCmd.Flags().Lookup("exclude-file"))
}

// run is the main command for the cli.
func run(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(logger.Options{
		JSON:   viper.GetBool("json"),
		Debug:  viper.GetBool("debug"),
		Output: viper.GetString("log-file"),
	})
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	if config == nil {
		logger.Fatal("config is required")
	}

	logger.Info("starting the licita-radar", zap.String("version", resolveVersion()))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	if config.Profile == nil {
		logger.Fatal("profile is required to evaluate records")
	}

	since, err := parseSince(cmd.Flag("since").Value.String(), time.Now())
	if err != nil {
		logger.Fatal("parsing since flag", zap.Error(err))
	}

	savedFilters, err := criteria.FiltersFromMaps(config.Filters)
	if err != nil {
		logger.Fatal("parsing saved filters", zap.Error(err))
	}

	records, err := getRecords(ctx, config, since, logger)
	if err != nil {
		logger.Fatal("getting records", zap.Error(err))
	}

	if records.Len() == 0 {
		logger.Info("exiting", zap.String("reason", "no records found"))
		return
	}

	terms := config.Terms
	if raw := cmd.Flag("terms").Value.String(); raw != "" {
		terms = search.ParseTerms(raw)
	}

	matching := config.Matching
	if matching == nil {
		matching = &MatchingConfig{}
	}

	system := sector.DefaultSynonyms
	if matching.DisableSystemSynonyms {
		system = nil
	}
	keywords := sector.BuildKeywordSet(*config.Profile, system)
	logger.Info("keywords built",
		zap.Int("primary", len(keywords.Primary)),
		zap.Int("secondary", len(keywords.Secondary)),
		zap.Int("category_codes", len(keywords.CategoryCodes)),
	)

	hybrid := newHybrid(ctx, config, matching, logger)

	filterCfg := &filtering.Config{
		Profile:       config.Profile,
		SavedFilters:  savedFilters,
		Terms:         terms,
		Since:         since,
		DismissedFile: viper.GetString("exclude-file"),
	}
	deps := filtering.Deps{
		Logger:     logger,
		Classifier: hybrid,
		Keywords:   keywords,
		Scanner:    search.NewScanner(matching.Fuzzy),
	}

	steps := filtering.Default()
	if filterCfg.DismissedFile == "" {
		filtering.DisableByName(steps, "dismissed", "exclude file is not set")
	}
	for _, status := range filtering.Describe(steps) {
		logger.Debug("filter status", zap.String("name", status.Name), zap.Bool("enabled", status.Enabled), zap.String("reason", status.Reason))
	}

	filtered, rejected, err := filtering.Run(ctx, filterCfg, deps, steps, records)
	if err != nil {
		logger.Fatal("filtering failed", zap.Error(err))
	}
	records = filtered

	if err := dismissRejected(filterCfg.DismissedFile, rejected, logger); err != nil {
		logger.Warn("saving ai rejections", zap.Error(err))
	}

	if records.Len() == 0 {
		logger.Info("exiting", zap.String("reason", "no records left after filters"))
		return
	}

	autoApprove := cmd.Flag("auto-approve").Value.String() == "true"
	action := PromptShow
	for {
		var err error
		if !autoApprove {
			_, action, err = prompt.Run()
			if err != nil {
				logger.Fatal("exiting", zap.Error(err))
			}
		}

		logger.Info("current list of records", zap.Int("count", records.Len()))

		if err := handleAction(action, logger, records); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}

		if autoApprove {
			return
		}
	}
}

func handleAction(action string, logger *zap.Logger, records *procurement.Records) error {
	switch action {
	case PromptShow:
		show(logger, records)
		return nil
	case PromptNo:
		logger.Info("exiting", zap.String("reason", "got no from prompt"))
		return errExit
	case PromptManualDismiss:
		return manualDismiss(logger, records)
	case PromptReportByOrgs:
		pretty, _ := json.MarshalIndent(records.ReportByOrganization(), "", "  ")
		logger.Info(string(pretty), zap.Int("records count", records.Len()))
		return nil
	case PromptRecordsToFile:
		filename, err := records.DumpToTmpFile()
		if err != nil {
			return fmt.Errorf("dump results to file: %w", err)
		}
		logger.Info("dumping result to file", zap.String("filename", filename))
		return nil
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

func show(l *zap.Logger, records *procurement.Records) {
	for _, record := range records.Items {
		fields := logger.RecordFields(record)
		fields = append(fields,
			zap.String("modality", record.Modality),
			zap.Float64("value", record.Value()),
			zap.String("url", record.URL),
		)
		l.Info(record.Subject, fields...)
	}
}

func manualDismiss(logger *zap.Logger, records *procurement.Records) error {
	excludeFile := viper.GetString("exclude-file")
	if excludeFile == "" {
		return errors.New("exclude file is required for manual mode")
	}

	for {
		items := make([]string, 0, records.Len()+2)
		for _, r := range records.Items {
			items = append(items, fmt.Sprintf("%s %s / %s / %s", r.Key(), r.Subject, r.OrganizationName, r.URL))
		}

		if records.Len() != 0 {
			items = append(items, PromptAppendToExcludeFile)
		}

		recordPrompt := promptui.Select{
			Label: "Choose a record to dismiss and press ENTER",
			Items: append(items, PromptBack),
		}

		_, selected, err := recordPrompt.Run()
		if err != nil {
			return err
		}

		switch selected {
		case PromptBack:
			return nil
		case PromptAppendToExcludeFile:
			if err := appendDismissed(excludeFile, records.ToDismissed(procurement.DismissActorUser, "")); err != nil {
				return err
			}

			logger.Info("appended to exclude file", zap.String("filename", excludeFile))

			records.Exclude(procurement.RecordKeyField, records.Keys())
		default:
			key := strings.Split(selected, " ")[0]

			record := records.FindByID(key)
			if record == nil {
				return fmt.Errorf("there is no such record %s", key)
			}

			one := procurement.NewRecords([]*procurement.Record{record})
			if err := appendDismissed(excludeFile, one.ToDismissed(procurement.DismissActorUser, "")); err != nil {
				return err
			}

			records.Exclude(procurement.RecordKeyField, []string{key})
		}
	}
}

// dismissRejected stores records rejected by the external classifier so they
// are not sent again on the next run.
func dismissRejected(path string, rejected []*procurement.Record, logger *zap.Logger) error {
	if path == "" || len(rejected) == 0 {
		return nil
	}

	rs := procurement.NewRecords(rejected)
	if err := appendDismissed(path, rs.ToDismissed(procurement.DismissActorAI, "rejected by ai classifier")); err != nil {
		return err
	}

	logger.Info("ai rejections appended to exclude file", zap.String("filename", path), zap.Int("count", rs.Len()))
	return nil
}

func appendDismissed(path string, d *procurement.Dismissed) error {
	existing, err := procurement.GetDismissedFromFile(path)
	if err != nil {
		return err
	}

	existing.Append(d)

	return existing.ToFile(path)
}

// getRecords reads records from the configured file or queries PNCP.
func getRecords(ctx context.Context, config *Config, since time.Time, logger *zap.Logger) (*procurement.Records, error) {
	source := config.Source
	if source == nil {
		source = &SourceConfig{}
	}

	if source.File != "" {
		records, err := procurement.LoadFromFile(source.File)
		if err != nil {
			return nil, fmt.Errorf("loading records file: %w", err)
		}
		logger.Info("getting records from file", zap.String("file", source.File), zap.Int("count", records.Len()))
		return records, nil
	}

	client := pncp.New(logger)
	if source.UserAgent != "" {
		client.UserAgent = source.UserAgent
	}
	if source.MaxPages > 0 {
		client.MaxPages = source.MaxPages
	}

	params := &pncp.SearchParams{}
	if source.PNCP != nil {
		p := *source.PNCP
		params = &p
	}
	if !since.IsZero() {
		params.From = since
	}

	records, err := client.Search(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	logger.Info("getting records from pncp", zap.Int("count", records.Len()))
	return records, nil
}

func newHybrid(ctx context.Context, config *Config, matching *MatchingConfig, logger *zap.Logger) *classify.Hybrid {
	semantic := sector.NewMatcher(matching.Fuzzy, matching.Weights)

	var (
		external ai.Classifier
		opts     classify.Options
	)

	if config.AI != nil && config.AI.Enabled {
		opts = config.AI.Hybrid
		opts.UseExternal = true

		classifier, err := newAIClassifier(ctx, config.AI, logger)
		if err != nil {
			logger.Warn("skipping ai classifier", zap.Error(err))
			opts.UseExternal = false
		} else {
			external = classifier
		}
	}

	return classify.New(semantic, external, config.Profile.SectorNames(), opts, logger)
}

func newAIClassifier(ctx context.Context, cfg *AIConfig, l *zap.Logger) (ai.Classifier, error) {
	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}

	if cfg.Gemini == nil {
		return nil, errors.New("gemini configuration is required when ai is enabled")
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		File:  cfg.Gemini.APIKeyFile,
		Env:   "GEMINI_API_KEY",
		Value: cfg.Gemini.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file, GEMINI_API_KEY_FILE or GEMINI_API_KEY)", err)
	}

	genLogger := logger.WithAI(l, "gemini", cfg.Gemini.Model).With(
		zap.Int("ai_retry_attempts", cfg.Gemini.MaxRetries),
	)

	generator, err := gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model, cfg.Gemini.MaxRetries, genLogger)
	if err != nil {
		return nil, err
	}

	minConfidence := cfg.MinimumConfidence
	if minConfidence < 0 {
		minConfidence = 0
	}

	classifierLogger := logger.WithAI(l, "gemini", generator.Model()).With(
		zap.Float64("minimum_confidence", minConfidence),
	)

	classifier := gemini.NewClassifier(generator, minConfidence, cfg.Gemini.MaxLogLength, classifierLogger)
	classifier.SetPromptOverrides(cfg.Prompt)

	return classifier, nil
}
