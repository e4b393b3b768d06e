package detection

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/shenikar/traffic_incident_system/internal/config"
	"github.com/shenikar/traffic_incident_system/internal/models"
)

type dedupEntry struct {
	lastReportedAt time.Time
	reported       bool
	streak         int
	lastSeenAt     time.Time
}

// Deduplicator подавляет повторные кандидаты для одной точки в пределах окна cooldown
// и требует confirmFrames подряд идущих кадров с кандидатом до первого принятия.
//
// Каждая камера должна владеть собственным экземпляром.
type Deduplicator struct {
	mu      sync.Mutex
	entries map[string]*dedupEntry

	cooldown      time.Duration
	confirmFrames int
	precision     int
	keyByName     bool
	staleAfter    time.Duration
	sweepInterval time.Duration
	maxKeys       int
	lastSweep     time.Time

	logger *logrus.Logger
}

// NewDeduplicator создает пустое состояние подавления
func NewDeduplicator(cfg *config.Config, logger *logrus.Logger) *Deduplicator {
	confirm := cfg.DedupConfirmFrames
	if confirm < 1 {
		confirm = 1
	}
	return &Deduplicator{
		entries:       make(map[string]*dedupEntry),
		cooldown:      cfg.DedupCooldown,
		confirmFrames: confirm,
		precision:     cfg.DedupKeyPrecision,
		keyByName:     cfg.DedupKeyByName,
		staleAfter:    cfg.DedupStaleAfter,
		sweepInterval: cfg.DedupSweepInterval,
		maxKeys:       cfg.DedupMaxKeys,
		logger:        logger,
	}
}

// Key возвращает ключ местоположения: имя зоны либо координаты, округленные до precision знаков
func (d *Deduplicator) Key(loc models.Location) string {
	if d.keyByName && strings.TrimSpace(loc.Name) != "" {
		return "name:" + strings.ToLower(strings.TrimSpace(loc.Name))
	}
	return fmt.Sprintf("geo:%.*f,%.*f", d.precision, loc.Latitude, d.precision, loc.Longitude)
}

// Admit решает, пропустить ли кандидата дальше. При принятии запоминает now как время последнего отчета.
func (d *Deduplicator) Admit(candidate models.IncidentCandidate, now time.Time) bool {
	key := d.Key(candidate.Location)

	d.mu.Lock()
	defer d.mu.Unlock()

	d.sweepLocked(now)

	entry, ok := d.entries[key]
	if !ok {
		d.ensureCapacityLocked(now)
		entry = &dedupEntry{}
		d.entries[key] = entry
	}
	entry.lastSeenAt = now
	entry.streak++

	if entry.streak < d.confirmFrames {
		return false
	}
	if entry.reported && now.Sub(entry.lastReportedAt) < d.cooldown {
		return false
	}

	entry.reported = true
	entry.lastReportedAt = now
	return true
}

// Miss отмечает кадр без кандидата для ключа: серия подряд идущих кадров обнуляется
func (d *Deduplicator) Miss(key string, now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if entry, ok := d.entries[key]; ok {
		entry.streak = 0
		entry.lastSeenAt = now
	}
	d.sweepLocked(now)
}

// Len возвращает число отслеживаемых ключей
func (d *Deduplicator) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

// sweepLocked удаляет записи без активности дольше staleAfter. Запускается не чаще sweepInterval.
func (d *Deduplicator) sweepLocked(now time.Time) {
	if d.staleAfter <= 0 || now.Sub(d.lastSweep) < d.sweepInterval {
		return
	}
	d.lastSweep = now

	purged := 0
	for key, entry := range d.entries {
		if d.expiredLocked(entry, now) && now.Sub(entry.lastSeenAt) > d.staleAfter {
			delete(d.entries, key)
			purged++
		}
	}
	if purged > 0 {
		d.logger.WithFields(logrus.Fields{
			"component": "deduplicator",
			"purged":    purged,
			"remaining": len(d.entries),
		}).Debug("Purged stale location keys")
	}
}

// ensureCapacityLocked освобождает место под новый ключ, если достигнут maxKeys.
// Сначала вытесняются записи с истекшим cooldown.
func (d *Deduplicator) ensureCapacityLocked(now time.Time) {
	if d.maxKeys <= 0 || len(d.entries) < d.maxKeys {
		return
	}

	var victim string
	var victimSeen time.Time
	victimExpired := false
	for key, entry := range d.entries {
		expired := d.expiredLocked(entry, now)
		switch {
		case victim == "":
		case expired && !victimExpired:
		case expired == victimExpired && entry.lastSeenAt.Before(victimSeen):
		default:
			continue
		}
		victim, victimSeen, victimExpired = key, entry.lastSeenAt, expired
	}

	delete(d.entries, victim)
	d.logger.WithFields(logrus.Fields{
		"component": "deduplicator",
		"evicted":   victim,
		"max_keys":  d.maxKeys,
	}).Warn("Location key limit reached, evicted least recently seen key")
}

func (d *Deduplicator) expiredLocked(entry *dedupEntry, now time.Time) bool {
	return !entry.reported || now.Sub(entry.lastReportedAt) >= d.cooldown
}
