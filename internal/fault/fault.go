// Package fault реализует политику искусственных отказов, которой сервис
// имитирует ненадёжную зависимость для проверки устойчивости вызывающей стороны.
package fault

import (
	"math/rand"
	"sync"
	"time"
)

// DefaultRate — по умолчанию отказывает в среднем каждый пятый запрос.
const DefaultRate = 5

// Injector решает, нужно ли искусственно провалить текущий запрос.
type Injector interface {
	ShouldInject() bool
}

// RandomInjector проваливает запрос, если равномерное случайное число из [0, rate) равно нулю.
// Безопасен для конкурентного использования.
type RandomInjector struct {
	mu   sync.Mutex
	rnd  *rand.Rand
	rate int
}

// NewRandomInjector создаёт политику с частотой отказов 1/rate.
// rate <= 0 отключает отказы. seed == 0 означает инициализацию текущим временем.
func NewRandomInjector(rate int, seed int64) *RandomInjector {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &RandomInjector{
		rnd:  rand.New(rand.NewSource(seed)),
		rate: rate,
	}
}

// ShouldInject возвращает true примерно в одном случае из rate.
func (i *RandomInjector) ShouldInject() bool {
	if i == nil || i.rate <= 0 {
		return false
	}

	i.mu.Lock()
	n := i.rnd.Intn(i.rate)
	i.mu.Unlock()

	return n == 0
}

// Rate возвращает знаменатель частоты отказов.
func (i *RandomInjector) Rate() int {
	return i.rate
}

// Never никогда не проваливает запросы.
type Never struct{}

// ShouldInject всегда возвращает false.
func (Never) ShouldInject() bool { return false }

// Always проваливает каждый запрос.
type Always struct{}

// ShouldInject всегда возвращает true.
func (Always) ShouldInject() bool { return true }
