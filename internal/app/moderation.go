package app

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"terrenos/internal/domain"
)

// ModerationService handles user submissions: intake, listing with lazy
// photo recovery, and the approve/reject decision that promotes an approved
// submission into the public catalog.
type ModerationService struct {
	subs    domain.SubmissionRepository
	plots   domain.PlotRepository
	store   domain.ObjectStore
	cache   domain.Cache
	workers int64
}

func NewModerationService(subs domain.SubmissionRepository, plots domain.PlotRepository, store domain.ObjectStore, cache domain.Cache, workers int) *ModerationService {
	if workers <= 0 {
		workers = 4
	}
	return &ModerationService{subs: subs, plots: plots, store: store, cache: cache, workers: int64(workers)}
}

// CreateSubmission records a pending user listing. Photos are uploaded by
// the client afterwards and confirmed via SetPhotos.
func (s *ModerationService) CreateSubmission(ctx context.Context, sub domain.Submission) (domain.Submission, error) {
	sub.Title = strings.TrimSpace(sub.Title)
	sub.Location = strings.TrimSpace(sub.Location)
	if sub.Title == "" || sub.Location == "" || !finite(sub.PriceUSD) || !finite(sub.AreaM2) {
		return domain.Submission{}, domain.ErrNoValidRows
	}
	sub.Type = strings.ToLower(strings.TrimSpace(sub.Type))
	if sub.Type == "" {
		sub.Type = domain.TypeResidential
	}
	sub.DealType = strings.ToLower(strings.TrimSpace(sub.DealType))
	if sub.DealType == "" {
		sub.DealType = domain.DealSale
	}
	sub.Description = trimPtr(sub.Description)
	sub.Status = domain.SubmissionPending
	sub.ImageURLs = nil
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}

	if err := s.subs.InsertSubmission(ctx, sub); err != nil {
		return domain.Submission{}, err
	}
	return sub, nil
}

// SetPhotos records the uploaded photo URLs on the caller's pending
// submission (the explicit confirmation step of the two-phase upload).
func (s *ModerationService) SetPhotos(ctx context.Context, id, userID string, urls []string) error {
	return s.subs.SetSubmissionImages(ctx, id, userID, urls)
}

// ListSubmissions returns all submissions, newest first. Submissions whose
// recorded image list is empty get it recovered from the object-store
// namespace on the fly; a recovery failure leaves the list empty rather
// than failing the page.
func (s *ModerationService) ListSubmissions(ctx context.Context) ([]domain.Submission, error) {
	out, err := s.subs.ListSubmissions(ctx)
	if err != nil {
		return nil, err
	}

	sem := semaphore.NewWeighted(s.workers)
	var wg sync.WaitGroup
	for i := range out {
		if len(out[i].ImageURLs) > 0 {
			continue
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(sub *domain.Submission) {
			defer wg.Done()
			defer sem.Release(1)
			urls, rerr := s.resolveImages(ctx, sub.ID)
			if rerr != nil {
				log.Warn().Str("id", sub.ID).Err(rerr).Msg("photo recovery failed")
				return
			}
			sub.ImageURLs = urls
		}(&out[i])
	}
	wg.Wait()
	return out, nil
}

// Decide applies a moderator decision. Approval promotes the submission
// into the catalog: the status flip is a conditional pending->approved
// transition, and the catalog insert happens only after it succeeds, so a
// submission yields at most one plot even under concurrent approvals.
func (s *ModerationService) Decide(ctx context.Context, id, action string) error {
	switch action {
	case "reject":
		return s.subs.DecideSubmission(ctx, id, domain.SubmissionRejected, nil)
	case "approve":
		return s.approve(ctx, id)
	default:
		return fmt.Errorf("unknown action %q", action)
	}
}

func (s *ModerationService) approve(ctx context.Context, id string) error {
	sub, err := s.subs.GetSubmission(ctx, id)
	if err != nil {
		return err
	}

	imgs := sub.ImageURLs
	if len(imgs) == 0 {
		if imgs, err = s.resolveImages(ctx, sub.ID); err != nil {
			return err
		}
	}

	if err := s.subs.DecideSubmission(ctx, id, domain.SubmissionApproved, imgs); err != nil {
		return err
	}

	var cover *string
	if len(imgs) > 0 {
		cover = &imgs[0]
	}
	desc := dealTag(sub.DealType)
	if sub.Description != nil && *sub.Description != "" {
		desc = desc + " " + *sub.Description
	}

	plot := domain.Plot{
		Title:       sub.Title,
		Location:    sub.Location,
		PriceUSD:    sub.PriceUSD,
		AreaM2:      sub.AreaM2,
		Status:      domain.StatusAvailable,
		Type:        sub.Type,
		Description: &desc,
		ImageURL:    cover,
		ImageURLs:   imgs,
		Lat:         sub.Lat,
		Lng:         sub.Lng,
	}
	if _, err := s.plots.InsertPlots(ctx, []domain.Plot{plot}); err != nil {
		return err
	}
	if s.cache != nil {
		_ = s.cache.Del(ctx, plotsCacheKey)
	}
	return nil
}

func (s *ModerationService) resolveImages(ctx context.Context, id string) ([]string, error) {
	names, err := s.store.List(ctx, id)
	if err != nil {
		return nil, err
	}
	urls := make([]string, 0, len(names))
	for _, n := range names {
		urls = append(urls, s.store.PublicURL(id+"/"+n))
	}
	return urls, nil
}

func dealTag(dealType string) string {
	if dealType == domain.DealRent {
		return "[Arriendo]"
	}
	return "[Venta]"
}
