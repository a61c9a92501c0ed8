package intake

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"guessrank/internal/config"
	"guessrank/internal/fileutil"
	"guessrank/internal/logging"
	"guessrank/internal/ranks"
	"guessrank/internal/services"
	"guessrank/internal/store"
)

// ConfigSource lists guild channel configurations.
type ConfigSource interface {
	LoadConfigs(ctx context.Context) (map[string]store.GuildConfig, error)
}

// Submitter identifies who sent a clip and where.
type Submitter struct {
	ID          string
	Name        string
	DMChannelID string
	DMMessageID string
}

// Service runs the intake flow: validate, stage, resolve guild, collect rank.
type Service struct {
	stager   *Stager
	registry *Registry
	configs  ConfigSource
	logger   *slog.Logger
}

// NewService wires intake from configuration.
func NewService(cfg *config.Config, configs ConfigSource, logger *slog.Logger) (*Service, error) {
	validator, err := NewValidator(cfg)
	if err != nil {
		return nil, err
	}
	logger = logging.NewComponentLogger(logger, "intake")
	return &Service{
		stager:   NewStager(cfg.Paths.StagingDir, validator, secondsDuration(cfg.Intake.DownloadTimeoutSeconds)),
		registry: NewRegistry(cfg.SelectionTimeout(), cfg.Intake.SubmissionsPerHour, cfg.Intake.SubmissionBurst, logger),
		configs:  configs,
		logger:   logger,
	}, nil
}

// Registry exposes the waiting submissions.
func (s *Service) Registry() *Registry {
	return s.registry
}

// Begin stages src and registers a submission. The returned submission is in
// PhaseSelectGuild when the submitter must choose a guild, otherwise in
// PhaseSelectRank.
func (s *Service) Begin(ctx context.Context, who Submitter, src Source) (Submission, error) {
	if !s.registry.Allow(who.ID) {
		return Submission{}, services.Describe("You're submitting clips too quickly. Please wait a while and try again.",
			services.Wrap(services.ErrCapacity, "intake", "begin", "rate limited user "+who.ID, nil))
	}
	configs, err := s.configs.LoadConfigs(ctx)
	if err != nil {
		return Submission{}, services.Wrap(services.ErrExternal, "intake", "begin", "load guild configs", err)
	}
	selection, err := SelectGuild(configs, "")
	if err != nil {
		return Submission{}, err
	}

	staged, err := s.stager.Stage(ctx, src)
	if err != nil {
		return Submission{}, err
	}

	sub := Submission{
		ID:            uuid.NewString(),
		SubmitterID:   who.ID,
		SubmitterName: who.Name,
		DMChannelID:   who.DMChannelID,
		DMMessageID:   who.DMMessageID,
		StagedPath:    staged.Path,
		OriginalName:  staged.OriginalName,
		Size:          staged.Size,
		GuildID:       selection.GuildID,
		Phase:         PhaseSelectRank,
	}
	if selection.NeedsChoice() {
		sub.Phase = PhaseSelectGuild
		for _, cfg := range selection.Candidates {
			sub.Candidates = append(sub.Candidates, cfg.GuildID)
		}
	}
	sub = s.registry.Add(sub)

	logging.WithContext(services.WithSubmissionID(ctx, sub.ID), s.logger).Info("submission staged",
		logging.String(logging.FieldUserID, who.ID),
		logging.String("file", staged.OriginalName),
		logging.Int64("bytes", staged.Size),
		logging.String("phase", string(sub.Phase)),
		logging.String(logging.FieldEventType, "submission_staged"),
	)
	return sub, nil
}

// ChooseGuild records the submitter's guild choice after re-checking that the
// guild still qualifies.
func (s *Service) ChooseGuild(ctx context.Context, id, guildID string) (Submission, error) {
	configs, err := s.configs.LoadConfigs(ctx)
	if err != nil {
		return Submission{}, services.Wrap(services.ErrExternal, "intake", "choose_guild", "load guild configs", err)
	}
	if _, err := SelectGuild(configs, guildID); err != nil {
		return Submission{}, err
	}
	return s.registry.Update(id, func(sub *Submission) error {
		if len(sub.Candidates) > 0 && !contains(sub.Candidates, guildID) {
			return services.Describe("That server was not offered for this submission.",
				services.Wrap(services.ErrValidation, "intake", "choose_guild", fmt.Sprintf("guild %s not a candidate", guildID), nil))
		}
		sub.GuildID = guildID
		sub.Phase = PhaseSelectRank
		return nil
	})
}

// ChooseRank records the claimed rank and removes the submission from the
// registry so exactly one caller processes it.
func (s *Service) ChooseRank(id string, rank ranks.Rank) (Submission, error) {
	if !rank.Valid() {
		return Submission{}, services.Describe("Pick one of the listed ranks.",
			services.Wrap(services.ErrValidation, "intake", "choose_rank", fmt.Sprintf("unknown rank %q", rank), nil))
	}
	current, ok := s.registry.Get(id)
	if !ok {
		return Submission{}, expired(id)
	}
	if current.GuildID == "" {
		return Submission{}, services.Describe("Pick a server first.",
			services.Wrap(services.ErrValidation, "intake", "choose_rank", "guild not selected", nil))
	}
	sub, err := s.registry.Take(id)
	if err != nil {
		return Submission{}, err
	}
	sub.ClaimedRank = rank
	sub.Phase = PhaseProcessing
	return sub, nil
}

// Cancel drops a waiting submission and its staged file.
func (s *Service) Cancel(id string) {
	s.registry.Discard(id)
}

// Cleanup removes the staged file of a submission that left the registry.
func (s *Service) Cleanup(sub Submission) {
	fileutil.RemoveQuietly(s.logger, sub.StagedPath)
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
