package service

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Beleza-Asureti/arrms-onspring-integration/internal/arrms"
	"github.com/Beleza-Asureti/arrms-onspring-integration/internal/config"
	"github.com/Beleza-Asureti/arrms-onspring-integration/internal/onspring"
	"github.com/Beleza-Asureti/arrms-onspring-integration/internal/rabbitmq"
	syncer "github.com/Beleza-Asureti/arrms-onspring-integration/internal/sync"
)

// Service holds all application dependencies so handlers get them injected
// instead of reaching for globals.
type Service struct {
	Cfg          *config.Config
	DB           *gorm.DB
	Logger       *zap.Logger
	RMQ          *rabbitmq.Connection
	Onspring     *onspring.Client
	ARRMS        *arrms.Client
	Orchestrator *syncer.Orchestrator
}

func NewService(
	cfg *config.Config,
	db *gorm.DB,
	logger *zap.Logger,
	rmq *rabbitmq.Connection,
	onspringClient *onspring.Client,
	arrmsClient *arrms.Client,
	orchestrator *syncer.Orchestrator,
) *Service {
	return &Service{
		Cfg:          cfg,
		DB:           db,
		Logger:       logger,
		RMQ:          rmq,
		Onspring:     onspringClient,
		ARRMS:        arrmsClient,
		Orchestrator: orchestrator,
	}
}
