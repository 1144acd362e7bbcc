// cmd/server/main.go
package main

import (
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/unclebandit/reachline-backend/internal/audience"
	"github.com/unclebandit/reachline-backend/internal/controller"
	"github.com/unclebandit/reachline-backend/internal/db"
	"github.com/unclebandit/reachline-backend/internal/queue"
	"github.com/unclebandit/reachline-backend/internal/repository"
	"github.com/unclebandit/reachline-backend/internal/service"
)

const (
	schedulerInterval = 30 * time.Second
	staleJobThreshold = 15 * time.Minute
)

func main() {
	// Load .env
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️ No .env file found, relying on OS environment variables")
	}

	// Init DB
	db.Init()

	broadcastRepo := &repository.BroadcastRepository{DB: db.DB}
	jobRepo := &repository.JobRepository{DB: db.DB}
	logRepo := &repository.RecipientLogRepository{DB: db.DB}
	contactRepo := &repository.ContactRepository{DB: db.DB}
	campaignRepo := &repository.CampaignRepository{DB: db.DB}

	resolver := audience.NewResolver(contactRepo)

	orchestrator := &service.Orchestrator{
		BroadcastRepo: broadcastRepo,
		JobRepo:       jobRepo,
		LogRepo:       logRepo,
		Resolver:      resolver,
		Sender:        service.MockSender{},
		Workers:       envInt("SEND_WORKERS", 8),
		SendTimeout:   time.Duration(envInt("SEND_TIMEOUT_SECONDS", 10)) * time.Second,
	}

	broadcastService := &service.BroadcastService{
		BroadcastRepo: broadcastRepo,
		Resolver:      resolver,
	}
	campaignService := &service.CampaignService{CampaignRepo: campaignRepo}
	reportService := &service.ReportService{
		BroadcastRepo: broadcastRepo,
		JobRepo:       jobRepo,
		LogRepo:       logRepo,
	}

	// Recovery pass: close jobs abandoned by a previous process.
	if n, err := orchestrator.ReconcileStaleJobs(staleJobThreshold); err != nil {
		log.Println("⚠️ stale job reconciliation failed:", err)
	} else if n > 0 {
		log.Printf("reconciled %d stale jobs\n", n)
	}

	q := newQueue()
	defer q.Close()

	// Without a broker there is no separate worker process, so receipts are
	// applied in-process.
	if _, inMemory := q.(*queue.InMemoryQueue); inMemory {
		if err := q.Subscribe(queue.TopicDeliveryReceipts, receiptHandler(orchestrator)); err != nil {
			log.Fatal("failed to subscribe for receipts:", err)
		}
	}

	broadcastController := &controller.BroadcastController{
		BroadcastService: broadcastService,
		Orchestrator:     orchestrator,
		ReportService:    reportService,
	}
	campaignController := &controller.CampaignController{CampaignService: campaignService}
	webhookController := &controller.WebhookController{Queue: q}
	rulesController := controller.RulesController{}

	go runScheduler(broadcastRepo, orchestrator)

	r := chi.NewRouter()

	r.Get("/channel-rules", rulesController.ListChannelRules)

	// Broadcast routes
	r.Post("/broadcasts", broadcastController.CreateBroadcast)
	r.Get("/broadcasts", broadcastController.ListBroadcasts)
	r.Get("/broadcasts/{id}", broadcastController.GetBroadcast)
	r.Put("/broadcasts/{id}", broadcastController.UpdateBroadcast)
	r.Delete("/broadcasts/{id}", broadcastController.DeleteBroadcast)
	r.Post("/broadcasts/{id}/duplicate", broadcastController.DuplicateBroadcast)
	r.Post("/broadcasts/{id}/preview-audience", broadcastController.PreviewAudience)
	r.Post("/broadcasts/{id}/schedule", broadcastController.ScheduleBroadcast)
	r.Post("/broadcasts/{id}/cancel", broadcastController.CancelBroadcast)
	r.Post("/broadcasts/{id}/send", broadcastController.SendBroadcast)
	r.Get("/broadcasts/{id}/report", broadcastController.GetReport)

	// Campaign routes
	r.Post("/campaigns", campaignController.CreateCampaign)
	r.Get("/campaigns", campaignController.ListCampaigns)
	r.Get("/campaigns/{id}", campaignController.GetCampaign)
	r.Put("/campaigns/{id}", campaignController.UpdateCampaign)
	r.Delete("/campaigns/{id}", campaignController.DeleteCampaign)
	r.Post("/campaigns/{id}/schedule", campaignController.ScheduleCampaign)
	r.Post("/campaigns/{id}/activate", campaignController.ActivateCampaign)
	r.Post("/campaigns/{id}/pause", campaignController.PauseCampaign)
	r.Post("/campaigns/{id}/resume", campaignController.ResumeCampaign)
	r.Post("/campaigns/{id}/complete", campaignController.CompleteCampaign)
	r.Post("/campaigns/{id}/messages", campaignController.AddMessage)
	r.Put("/campaigns/{id}/messages/{messageID}", campaignController.UpdateMessage)
	r.Delete("/campaigns/{id}/messages/{messageID}", campaignController.DeleteMessage)

	// Platform webhooks
	r.Post("/webhooks/receipts", webhookController.ReceiveReceipt)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	log.Println("🚀 Server running on :" + port)
	log.Fatal(http.ListenAndServe(":"+port, r))
}

func newQueue() queue.Queue {
	url := os.Getenv("AMQP_URL")
	if url == "" {
		log.Println("⚠️ AMQP_URL not set, using in-memory queue")
		return queue.NewInMemoryQueue()
	}
	q, err := queue.NewAMQPQueue(url)
	if err != nil {
		log.Fatal("failed to connect to RabbitMQ:", err)
	}
	return q
}

func receiptHandler(orchestrator *service.Orchestrator) func([]byte) error {
	return func(payload []byte) error {
		var receipt queue.Receipt
		if err := json.Unmarshal(payload, &receipt); err != nil {
			log.Println("⚠️ invalid receipt payload:", err)
			return nil // no retry
		}
		return orchestrator.Confirm(receipt.BroadcastID, receipt.ContactID, receipt.Event, receipt.OccurredAt)
	}
}

// runScheduler fires due scheduled broadcasts.
func runScheduler(repo *repository.BroadcastRepository, orchestrator *service.Orchestrator) {
	ticker := time.NewTicker(schedulerInterval)
	defer ticker.Stop()

	for range ticker.C {
		due, err := repo.ListDueScheduled(time.Now())
		if err != nil {
			log.Println("⚠️ scheduler query failed:", err)
			continue
		}
		for _, b := range due {
			jobID, err := orchestrator.Dispatch(b.ID)
			if err != nil {
				log.Printf("⚠️ scheduled dispatch of broadcast %d failed: %v\n", b.ID, err)
				continue
			}
			log.Printf("⏰ scheduled broadcast %d dispatched as job %d\n", b.ID, jobID)
		}
	}
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
