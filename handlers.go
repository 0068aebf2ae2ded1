package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"bitbucket.org/mmdatafocus/demodata_backend/config"
	"bitbucket.org/mmdatafocus/demodata_backend/industry"
	"bitbucket.org/mmdatafocus/demodata_backend/localization"
	"bitbucket.org/mmdatafocus/demodata_backend/models"
	"bitbucket.org/mmdatafocus/demodata_backend/utils"
	"bitbucket.org/mmdatafocus/demodata_backend/workflow"
	"github.com/bsm/redislock"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type createTenantRequest struct {
	Name         string `json:"name" binding:"required"`
	CountryCode  string `json:"country_code"`
	IndustryCode string `json:"industry_code" binding:"required"`
}

func createTenantHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createTenantRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		// Demo tenants are addressed by name in tooling; duplicates would
		// make cleanup ambiguous.
		if err := utils.ValidateUnique[models.DemoTenant](c.Request.Context(), "", "name", req.Name); err != nil {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		tenant := &models.DemoTenant{
			ID:           uuid.NewString(),
			Name:         req.Name,
			CountryCode:  localization.ForCountry(req.CountryCode).CountryCode(),
			IndustryCode: industry.ForCode(req.IndustryCode).Code,
			IsSynthetic:  true,
		}
		if err := tenant.Store(config.GetDB(), c.Request.Context()); err != nil {
			config.LogError(config.GetLogger(), "handlers.go", "createTenantHandler", "store tenant", req, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create tenant"})
			return
		}
		c.JSON(http.StatusCreated, tenant)
	}
}

func getTenantHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant, err := models.GetDemoTenant(config.GetDB(), c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "tenant not found"})
			return
		}
		c.JSON(http.StatusOK, tenant)
	}
}

func tenantKpisHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		from := c.Query("from")
		to := c.Query("to")
		if !utils.IsValidMonth(from) || !utils.IsValidMonth(to) || to < from {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from/to must be YYYY-MM with from <= to"})
			return
		}
		if err := utils.ValidateResourceId[models.DemoTenant](c.Request.Context(), "", c.Param("id")); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "tenant not found"})
			return
		}
		kpis, err := models.QueryMonthlyKpisWithOverrides(config.GetDB(), c.Request.Context(), c.Param("id"), from, to)
		if err != nil {
			config.LogError(config.GetLogger(), "handlers.go", "tenantKpisHandler", "query kpis", c.Param("id"), err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not measure kpis"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"tenant_id": c.Param("id"), "months": kpis})
	}
}

type createJobRequest struct {
	Seed       string            `json:"seed"`
	TargetSpec models.TargetSpec `json:"target_spec" binding:"required"`
}

func createGenerationJobHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createJobRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		db := config.GetDB()
		tenant, err := models.GetDemoTenant(db, c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "tenant not found"})
			return
		}
		if !tenant.IsSynthetic {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "tenant is not synthetic"})
			return
		}

		seed := req.Seed
		if seed == "" {
			seed = uuid.NewString()
		}
		job := &models.GenerationJob{
			ID:       uuid.NewString(),
			TenantId: tenant.ID,
			Status:   models.JobStatusPending,
			Phase:    models.PhaseInit,
			Seed:     seed,
		}
		if err := job.SetTargetSpec(&req.TargetSpec); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := job.Store(db, c.Request.Context()); err != nil {
			config.LogError(config.GetLogger(), "handlers.go", "createGenerationJobHandler", "store job", tenant.ID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create job"})
			return
		}

		// First invocation runs detached; later ones arrive as continuations.
		go runGenerationDetached(c.Request.Context(), job.ID)
		c.JSON(http.StatusAccepted, job)
	}
}

func runGenerationDetached(reqCtx context.Context, jobId string) {
	ctx := context.Background()
	if cid, ok := utils.GetCorrelationIdFromContext(reqCtx); ok {
		ctx = utils.SetCorrelationIdInContext(ctx, cid)
	}
	ctx, span := tracer.Start(ctx, "generation.run")
	defer span.End()
	if err := workflow.NewChunkedGenerator(config.GetDB()).Run(ctx, jobId); err != nil && !errors.Is(err, utils.ErrJobAlreadyCompleted) {
		config.LogError(config.GetLogger(), "handlers.go", "runGenerationDetached", "generation run", jobId, err)
	}
}

func getGenerationJobHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		job, err := models.GetGenerationJob(config.GetDB(), c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		c.JSON(http.StatusOK, job)
	}
}

type createPatchRequest struct {
	TenantId string           `json:"tenant_id" binding:"required"`
	Seed     string           `json:"seed"`
	Plan     models.PatchPlan `json:"plan" binding:"required"`
}

func createPatchJobHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createPatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		db := config.GetDB()
		tenant, err := models.GetDemoTenant(db, c.Request.Context(), req.TenantId)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "tenant not found"})
			return
		}
		if !tenant.IsSynthetic {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "tenant is not synthetic"})
			return
		}

		seed := req.Seed
		if seed == "" {
			seed = uuid.NewString()
		}
		job := &models.PatchJob{
			ID:       uuid.NewString(),
			TenantId: tenant.ID,
			Seed:     seed,
			Status:   models.JobStatusPending,
		}
		if err := job.SetPlan(&req.Plan); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := job.Store(db, c.Request.Context()); err != nil {
			config.LogError(config.GetLogger(), "handlers.go", "createPatchJobHandler", "store patch", tenant.ID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create patch job"})
			return
		}

		go runPatchDetached(c.Request.Context(), job.ID)
		c.JSON(http.StatusAccepted, job)
	}
}

func runPatchDetached(reqCtx context.Context, patchId string) {
	ctx := context.Background()
	if cid, ok := utils.GetCorrelationIdFromContext(reqCtx); ok {
		ctx = utils.SetCorrelationIdInContext(ctx, cid)
	}
	ctx, span := tracer.Start(ctx, "patch.run")
	defer span.End()
	if err := workflow.NewPatchEngine(config.GetDB()).Run(ctx, patchId); err != nil && !errors.Is(err, utils.ErrJobAlreadyCompleted) {
		config.LogError(config.GetLogger(), "handlers.go", "runPatchDetached", "patch run", patchId, err)
	}
}

func getPatchJobHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		job, err := models.GetPatchJob(config.GetDB(), c.Request.Context(), c.Param("id"))
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "patch job not found"})
			return
		}
		c.JSON(http.StatusOK, job)
	}
}

type validatePatchRequest struct {
	TenantId string           `json:"tenant_id" binding:"required"`
	Plan     models.PatchPlan `json:"plan" binding:"required"`
}

// validatePatchHandler is the dry-run preview: full validation, computed
// deltas and effort estimates, no job row and no mutation.
func validatePatchHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req validatePatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		db := config.GetDB()
		tenant, err := models.GetDemoTenant(db, c.Request.Context(), req.TenantId)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "tenant not found"})
			return
		}

		var current []models.MonthlyKpiSnapshot
		if len(req.Plan.Months) > 0 {
			from := req.Plan.Months[0].Month
			to := req.Plan.Months[len(req.Plan.Months)-1].Month
			if utils.IsValidMonth(from) && utils.IsValidMonth(to) {
				current, err = models.QueryMonthlyKpisWithOverrides(db, c.Request.Context(), tenant.ID, from, to)
				if err != nil {
					config.LogError(config.GetLogger(), "handlers.go", "validatePatchHandler", "query kpis", tenant.ID, err)
					c.JSON(http.StatusInternalServerError, gin.H{"error": "could not measure current kpis"})
					return
				}
			}
		}

		validation := workflow.ValidatePatchPlan(tenant, &req.Plan, current, nowUTC())
		c.JSON(http.StatusOK, validation)
	}
}

// continuationSecretMiddleware guards the internal continuation endpoints.
// When no secret is configured (local development) the check is skipped.
func continuationSecretMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		secret := config.ContinuationSecret()
		if secret != "" && c.GetHeader("X-Continuation-Secret") != secret {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid continuation secret"})
			return
		}
		c.Next()
	}
}

func continueGenerationHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		jobId := c.Param("id")
		job, err := models.GetGenerationJob(config.GetDB(), c.Request.Context(), jobId)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		invocationId, handled := claimContinuation(c, job.TenantId, "generation-continue")
		if handled {
			return
		}
		runContinuation(c, job.TenantId, "generation-continue", invocationId, func(ctx context.Context) error {
			return workflow.NewChunkedGenerator(config.GetDB()).Run(ctx, jobId)
		})
	}
}

func runPatchHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		patchId := c.Param("id")
		job, err := models.GetPatchJob(config.GetDB(), c.Request.Context(), patchId)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "patch job not found"})
			return
		}
		invocationId, handled := claimContinuation(c, job.TenantId, "patch-run")
		if handled {
			return
		}
		runContinuation(c, job.TenantId, "patch-run", invocationId, func(ctx context.Context) error {
			return workflow.NewPatchEngine(config.GetDB()).Run(ctx, patchId)
		})
	}
}

// claimContinuation claims the request's invocation id. Continuation
// delivery is at-least-once; the idempotency key turns duplicates into 204s.
func claimContinuation(c *gin.Context, tenantId, handlerName string) (invocationId string, handled bool) {
	invocationId = c.GetHeader("X-Invocation-Id")
	if invocationId == "" {
		invocationId = uuid.NewString()
	}
	skip, err := workflow.BeginIdempotency(config.GetDB(), tenantId, handlerName, invocationId)
	if err != nil {
		if errors.Is(err, workflow.ErrIdempotencyInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": "invocation already in progress"})
			return "", true
		}
		config.LogError(config.GetLogger(), "handlers.go", "claimContinuation", handlerName, invocationId, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "idempotency check failed"})
		return "", true
	}
	if skip {
		c.Status(http.StatusNoContent)
		return "", true
	}
	return invocationId, false
}

func runContinuation(c *gin.Context, tenantId, handlerName, invocationId string, run func(ctx context.Context) error) {
	ctx := c.Request.Context()
	db := config.GetDB()
	// A continuation for a job that already reached a terminal state is a
	// duplicate delivery, not a failure.
	if err := run(ctx); err != nil && !errors.Is(err, utils.ErrJobAlreadyCompleted) {
		_ = workflow.MarkIdempotencyFailed(db, tenantId, handlerName, invocationId, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := workflow.MarkIdempotencySucceeded(db, tenantId, handlerName, invocationId); err != nil {
		config.LogError(config.GetLogger(), "handlers.go", "runContinuation", handlerName, invocationId, err)
	}
	c.Status(http.StatusNoContent)
}

type pubSubPushMessage struct {
	Message struct {
		Data []byte `json:"data,omitempty"`
		ID   string `json:"id"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// continuationPubSubHandler accepts continuation messages delivered by a
// Pub/Sub push subscription. Malformed payloads are acked (204) to avoid
// retry loops; real processing failures return 500 so Pub/Sub redelivers.
func continuationPubSubHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := config.GetLogger()

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			config.LogError(logger, "handlers.go", "continuationPubSubHandler", "io.ReadAll", nil, err)
			c.Status(http.StatusNoContent)
			return
		}
		var push pubSubPushMessage
		if err := json.Unmarshal(body, &push); err != nil {
			config.LogError(logger, "handlers.go", "continuationPubSubHandler", "unmarshal body", body, err)
			c.Status(http.StatusNoContent)
			return
		}
		var msg config.ContinuationMessage
		if err := json.Unmarshal(push.Message.Data, &msg); err != nil {
			config.LogError(logger, "handlers.go", "continuationPubSubHandler", "unmarshal continuation", push.Message.Data, err)
			c.Status(http.StatusNoContent)
			return
		}
		if msg.TenantId == "" || msg.JobId == "" {
			config.LogError(logger, "handlers.go", "continuationPubSubHandler", "missing required fields", msg, fmt.Errorf("tenant_id/job_id required"))
			c.Status(http.StatusNoContent)
			return
		}

		invocationId := msg.Invocation
		if invocationId == "" {
			invocationId = push.Message.ID
		}
		handlerName := msg.JobType + "-continue"
		db := config.GetDB()
		skip, err := workflow.BeginIdempotency(db, msg.TenantId, handlerName, invocationId)
		if err != nil {
			// 500 tells Pub/Sub to retry, including the in-progress case.
			c.Status(http.StatusInternalServerError)
			return
		}
		if skip {
			c.Status(http.StatusNoContent)
			return
		}

		ctx := c.Request.Context()
		if msg.CorrelationId != "" {
			ctx = utils.SetCorrelationIdInContext(ctx, msg.CorrelationId)
		}

		// Best-effort redis lock keeps duplicate pushes from blocking on the
		// per-tenant DB lock. If redis is unavailable or the lock is taken we
		// proceed anyway; the engines serialize safely via GET_LOCK.
		if redisLock := config.GetRedisLock(); redisLock != nil {
			lock, lockErr := redisLock.Obtain(ctx, fmt.Sprintf("lock:demojob:%s", msg.TenantId), 30*time.Second, nil)
			if lockErr != nil {
				if lockErr != redislock.ErrNotObtained {
					logger.Warn("error obtaining redis lock; proceeding without it: " + lockErr.Error())
				}
			} else {
				defer func() {
					if releaseErr := lock.Release(ctx); releaseErr != nil && releaseErr != redislock.ErrLockNotHeld {
						logger.Warn("failed to release redis lock: " + releaseErr.Error())
					}
				}()
			}
		}

		switch msg.JobType {
		case "patch":
			err = workflow.NewPatchEngine(db).Run(ctx, msg.JobId)
		default:
			err = workflow.NewChunkedGenerator(db).Run(ctx, msg.JobId)
		}
		if err != nil && !errors.Is(err, utils.ErrJobAlreadyCompleted) {
			_ = workflow.MarkIdempotencyFailed(db, msg.TenantId, handlerName, invocationId, err)
			c.Status(http.StatusInternalServerError)
			return
		}
		_ = workflow.MarkIdempotencySucceeded(db, msg.TenantId, handlerName, invocationId)
		c.Status(http.StatusNoContent)
	}
}

func nowUTC() time.Time { return time.Now().UTC() }
