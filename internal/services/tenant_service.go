package services

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"

	"pizzaria/internal/auth"
	"pizzaria/internal/models"
	"pizzaria/internal/utils"
)

const tenantStatusTTL = time.Minute

// TrialExpiredReason - причина приостановки после окончания пробного периода
const TrialExpiredReason = "trial_expired"

// TenantService - консоль администратора платформы: пиццерии, планы, статусы
type TenantService struct {
	db        *gorm.DB
	redisUtil *utils.RedisClient
	trialDays int
	now       func() time.Time
}

// NewTenantService создает новый экземпляр TenantService
func NewTenantService(db *gorm.DB, trialDays int) *TenantService {
	if trialDays <= 0 {
		trialDays = 14
	}
	return &TenantService{db: db, trialDays: trialDays, now: time.Now}
}

// SetRedisUtil устанавливает Redis для кэша статусов арендаторов
func (s *TenantService) SetRedisUtil(redisUtil *utils.RedisClient) {
	s.redisUtil = redisUtil
}

// CreateTenantInput - регистрация новой пиццерии вместе с владельцем
type CreateTenantInput struct {
	Name          string            `json:"name" binding:"required"`
	Slug          string            `json:"slug"`
	OwnerEmail    string            `json:"owner_email" binding:"required"`
	OwnerName     string            `json:"owner_name"`
	OwnerPassword string            `json:"owner_password" binding:"required"`
	Plan          models.TenantPlan `json:"plan"`
}

// TenantFilter - фильтры списка арендаторов
type TenantFilter struct {
	Status models.TenantStatus
	Plan   models.TenantPlan
	Search string
}

// PlatformStats - сводка по платформе для консоли администратора
type PlatformStats struct {
	TotalTenants     int64                         `json:"total_tenants"`
	ByStatus         map[models.TenantStatus]int64 `json:"by_status"`
	ByPlan           map[models.TenantPlan]int64   `json:"by_plan"`
	TrialsEndingSoon int64                         `json:"trials_ending_soon"`
	SalesToday       int64                         `json:"sales_today"`
}

var slugInvalidChars = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify строит slug из названия: диакритика снимается, прочие символы заменяются дефисом
func Slugify(name string) string {
	plain := foldAccents(strings.ToLower(strings.TrimSpace(name)))
	return strings.Trim(slugInvalidChars.ReplaceAllString(plain, "-"), "-")
}

// foldAccents убирает диакритические знаки (ç -> c, ã -> a), кириллица остается как есть
func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	plain, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return plain
}

// CreateTenant создает пиццерию в пробном периоде и пользователя-владельца
func (s *TenantService) CreateTenant(in CreateTenantInput) (*models.Tenant, *models.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.OwnerEmail = strings.ToLower(strings.TrimSpace(in.OwnerEmail))
	if in.Name == "" || in.OwnerEmail == "" {
		return nil, nil, fmt.Errorf("%w: название и email владельца обязательны", ErrInvalidInput)
	}
	if in.Slug == "" {
		in.Slug = Slugify(in.Name)
	} else {
		in.Slug = Slugify(in.Slug)
	}
	if in.Slug == "" {
		return nil, nil, fmt.Errorf("%w: не удалось построить slug из названия", ErrInvalidInput)
	}
	if in.Plan == "" {
		in.Plan = models.PlanTrial
	}
	if !in.Plan.IsValid() {
		return nil, nil, fmt.Errorf("%w: неизвестный план %q", ErrInvalidInput, in.Plan)
	}

	hash, err := auth.HashPassword(in.OwnerPassword)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	tenant := models.Tenant{
		Name:       in.Name,
		Slug:       in.Slug,
		OwnerEmail: in.OwnerEmail,
		Plan:       in.Plan,
		Status:     models.TenantActive,
	}
	// Платный план сразу активен, пробный период только у плана trial
	if in.Plan == models.PlanTrial {
		trialEnds := s.now().UTC().AddDate(0, 0, s.trialDays)
		tenant.Status = models.TenantTrialing
		tenant.TrialEndsAt = &trialEnds
	}
	owner := models.User{
		Name:         in.OwnerName,
		Email:        in.OwnerEmail,
		PasswordHash: hash,
		Role:         models.RoleOwner,
		IsActive:     true,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&tenant).Error; err != nil {
			if isUniqueConstraintError(err) {
				return fmt.Errorf("%w: slug %s", ErrDuplicate, tenant.Slug)
			}
			return fmt.Errorf("ошибка создания пиццерии: %w", err)
		}
		owner.TenantID = tenant.ID
		if err := tx.Create(&owner).Error; err != nil {
			return fmt.Errorf("ошибка создания владельца: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	if tenant.TrialEndsAt != nil {
		log.Printf("✅ Пиццерия зарегистрирована: %s (%s), пробный период до %s", tenant.Name, tenant.Slug, tenant.TrialEndsAt.Format("2006-01-02"))
	} else {
		log.Printf("✅ Пиццерия зарегистрирована: %s (%s), план %s", tenant.Name, tenant.Slug, tenant.Plan)
	}
	return &tenant, &owner, nil
}

// List возвращает арендаторов платформы
func (s *TenantService) List(filter TenantFilter) ([]models.Tenant, error) {
	query := s.db.Model(&models.Tenant{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Plan != "" {
		query = query.Where("plan = ?", filter.Plan)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where("name ILIKE ? OR slug ILIKE ? OR owner_email ILIKE ?", like, like, like)
	}

	var tenants []models.Tenant
	if err := query.Order("created_at DESC").Find(&tenants).Error; err != nil {
		return nil, fmt.Errorf("ошибка загрузки пиццерий: %w", err)
	}
	return tenants, nil
}

// Get возвращает арендатора по ID
func (s *TenantService) Get(id string) (*models.Tenant, error) {
	var tenant models.Tenant
	if err := s.db.First(&tenant, "id = ?", id).Error; err != nil {
		return nil, notFoundOr(err)
	}
	return &tenant, nil
}

// ChangePlan меняет тарифный план. Отмененной пиццерии план не меняется.
func (s *TenantService) ChangePlan(id string, plan models.TenantPlan) (*models.Tenant, error) {
	if !plan.IsValid() {
		return nil, fmt.Errorf("%w: неизвестный план %q", ErrInvalidInput, plan)
	}
	tenant, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if tenant.Status == models.TenantCancelled {
		return nil, fmt.Errorf("%w: пиццерия отменена", ErrInvalidTransition)
	}
	if err := s.db.Model(tenant).Update("plan", plan).Error; err != nil {
		return nil, fmt.Errorf("ошибка смены плана: %w", err)
	}
	tenant.Plan = plan
	log.Printf("🔄 План пиццерии %s изменен на %s", tenant.Slug, plan)
	return tenant, nil
}

// ExtendTrial продлевает пробный период на days дней от текущей даты окончания (или от сейчас, если она прошла).
// Пиццерия, приостановленная из-за окончания пробного периода, возвращается в trialing.
func (s *TenantService) ExtendTrial(id string, days int) (*models.Tenant, error) {
	if days <= 0 || days > 365 {
		return nil, fmt.Errorf("%w: продление от 1 до 365 дней", ErrInvalidInput)
	}
	tenant, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	expired := tenant.Status == models.TenantSuspended && tenant.SuspendedReason == TrialExpiredReason
	if tenant.Status != models.TenantTrialing && !expired {
		return nil, fmt.Errorf("%w: продлить можно только пробный период", ErrInvalidTransition)
	}

	base := s.now().UTC()
	if tenant.TrialEndsAt != nil && tenant.TrialEndsAt.After(base) {
		base = *tenant.TrialEndsAt
	}
	newEnd := base.AddDate(0, 0, days)
	updates := map[string]interface{}{"trial_ends_at": newEnd}
	if expired {
		updates["status"] = models.TenantTrialing
		updates["suspended_at"] = nil
		updates["suspended_reason"] = ""
	}
	if err := s.db.Model(tenant).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("ошибка продления пробного периода: %w", err)
	}
	if expired {
		s.cacheStatus(tenant.ID, models.TenantTrialing)
		log.Printf("🔄 Пиццерия %s: пробный период возобновлен до %s", tenant.Slug, newEnd.Format("2006-01-02"))
	}
	return s.Get(id)
}

// Activate переводит пиццерию в active (оплата подтверждена)
func (s *TenantService) Activate(id string) (*models.Tenant, error) {
	return s.transition(id, models.TenantActive, "")
}

// MarkPastDue отмечает просроченную оплату
func (s *TenantService) MarkPastDue(id string) (*models.Tenant, error) {
	return s.transition(id, models.TenantPastDue, "")
}

// Suspend приостанавливает пиццерию
func (s *TenantService) Suspend(id, reason string) (*models.Tenant, error) {
	return s.transition(id, models.TenantSuspended, reason)
}

// Reactivate возвращает приостановленную пиццерию в active
func (s *TenantService) Reactivate(id string) (*models.Tenant, error) {
	return s.transition(id, models.TenantActive, "")
}

// Cancel отменяет подписку. Статус терминальный.
func (s *TenantService) Cancel(id string) (*models.Tenant, error) {
	return s.transition(id, models.TenantCancelled, "")
}

func (s *TenantService) transition(id string, to models.TenantStatus, reason string) (*models.Tenant, error) {
	tenant, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if !tenant.CanTransitionTo(to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, tenant.Status, to)
	}

	now := s.now().UTC()
	updates := map[string]interface{}{"status": to}
	switch to {
	case models.TenantSuspended:
		updates["suspended_at"] = now
		updates["suspended_reason"] = reason
	case models.TenantActive:
		updates["suspended_at"] = nil
		updates["suspended_reason"] = ""
	case models.TenantCancelled:
		updates["cancelled_at"] = now
	}

	if err := s.db.Model(tenant).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("ошибка смены статуса: %w", err)
	}
	s.cacheStatus(tenant.ID, to)

	log.Printf("🔄 Пиццерия %s: %s -> %s", tenant.Slug, tenant.Status, to)
	return s.Get(id)
}

// ExpireTrials приостанавливает пиццерии с истекшим пробным периодом, возвращает их количество
func (s *TenantService) ExpireTrials(now time.Time) (int, error) {
	var expired []models.Tenant
	err := s.db.Where("status = ? AND trial_ends_at IS NOT NULL AND trial_ends_at <= ?", models.TenantTrialing, now).
		Find(&expired).Error
	if err != nil {
		return 0, fmt.Errorf("ошибка поиска истекших пробных периодов: %w", err)
	}

	count := 0
	for _, t := range expired {
		if _, err := s.Suspend(t.ID, TrialExpiredReason); err != nil {
			log.Printf("⚠️ Не удалось приостановить %s после пробного периода: %v", t.Slug, err)
			continue
		}
		count++
	}
	if count > 0 {
		log.Printf("🔄 Пробный период истек у %d пиццерий", count)
	}
	return count, nil
}

// StartTrialExpiryWorker периодически вызывает ExpireTrials до отмены ctx
func (s *TenantService) StartTrialExpiryWorker(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("🔄 Проверка пробных периодов запущена (интервал %s)", interval)
	for {
		select {
		case <-ctx.Done():
			log.Println("🛑 Проверка пробных периодов остановлена")
			return
		case <-ticker.C:
			if _, err := s.ExpireTrials(s.now().UTC()); err != nil {
				log.Printf("❌ ExpireTrials: %v", err)
			}
		}
	}
}

// Status возвращает статус пиццерии (кэш Redis на минуту)
func (s *TenantService) Status(tenantID string) (models.TenantStatus, error) {
	if s.redisUtil != nil {
		if cached, err := s.redisUtil.Get(tenantStatusKey(tenantID)); err == nil && cached != "" {
			return models.TenantStatus(cached), nil
		}
	}
	tenant, err := s.Get(tenantID)
	if err != nil {
		return "", err
	}
	s.cacheStatus(tenantID, tenant.Status)
	return tenant.Status, nil
}

// IsOperational - может ли пиццерия работать со складом
func (s *TenantService) IsOperational(tenantID string) (bool, error) {
	status, err := s.Status(tenantID)
	if err != nil {
		return false, err
	}
	return status.IsOperational(), nil
}

// Stats собирает сводку по платформе
func (s *TenantService) Stats() (*PlatformStats, error) {
	stats := &PlatformStats{
		ByStatus: map[models.TenantStatus]int64{},
		ByPlan:   map[models.TenantPlan]int64{},
	}

	type groupRow struct {
		Key   string
		Count int64
	}
	var rows []groupRow
	if err := s.db.Model(&models.Tenant{}).Select("status AS key, COUNT(*) AS count").Group("status").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("ошибка статистики по статусам: %w", err)
	}
	for _, r := range rows {
		stats.ByStatus[models.TenantStatus(r.Key)] = r.Count
		stats.TotalTenants += r.Count
	}

	rows = nil
	if err := s.db.Model(&models.Tenant{}).Select("plan AS key, COUNT(*) AS count").Group("plan").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("ошибка статистики по планам: %w", err)
	}
	for _, r := range rows {
		stats.ByPlan[models.TenantPlan(r.Key)] = r.Count
	}

	now := s.now().UTC()
	if err := s.db.Model(&models.Tenant{}).
		Where("status = ? AND trial_ends_at BETWEEN ? AND ?", models.TenantTrialing, now, now.AddDate(0, 0, 3)).
		Count(&stats.TrialsEndingSoon).Error; err != nil {
		return nil, err
	}

	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if err := s.db.Model(&models.Sale{}).Where("created_at >= ?", dayStart).Count(&stats.SalesToday).Error; err != nil {
		return nil, err
	}
	return stats, nil
}

func tenantStatusKey(tenantID string) string {
	return "tenant:status:" + tenantID
}

func (s *TenantService) cacheStatus(tenantID string, status models.TenantStatus) {
	if s.redisUtil == nil {
		return
	}
	if err := s.redisUtil.Set(tenantStatusKey(tenantID), string(status), tenantStatusTTL); err != nil {
		log.Printf("⚠️ Tenant status cache write failed: %v", err)
	}
}
