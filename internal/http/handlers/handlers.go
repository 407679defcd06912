package handlers

import (
	"github.com/diagnosis/attendance-beacon/internal/attend"
	"github.com/diagnosis/attendance-beacon/internal/beacon"
	"github.com/diagnosis/attendance-beacon/internal/repo/postgres"
	"github.com/diagnosis/attendance-beacon/internal/session"
	"github.com/diagnosis/attendance-beacon/internal/token"
	"github.com/diagnosis/attendance-beacon/pkg/config"
	"github.com/diagnosis/attendance-beacon/pkg/events"
)

type Handlers struct {
	codec     *token.Codec
	metrics   *token.Metrics
	packer    *beacon.Packer
	registry  *session.Registry
	submitter *attend.Submitter
	sessions  postgres.SessionRepo
	eventBus  events.Publisher
	config    *config.Config
}

func New(
	codec *token.Codec,
	metrics *token.Metrics,
	packer *beacon.Packer,
	registry *session.Registry,
	submitter *attend.Submitter,
	sessions postgres.SessionRepo,
	eventBus events.Publisher,
	cfg *config.Config,
) *Handlers {
	return &Handlers{
		codec:     codec,
		metrics:   metrics,
		packer:    packer,
		registry:  registry,
		submitter: submitter,
		sessions:  sessions,
		eventBus:  eventBus,
		config:    cfg,
	}
}
