package auth

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"pult/internal/blob"
	"pult/internal/datasource"
	"pult/internal/schema"
)

// ErrAccessDenied — решающая функция вернула false.
var ErrAccessDenied = errors.New("access denied")

// DecisionContext — всё, что видит решающая функция авторизации.
type DecisionContext struct {
	User           *Identity
	Controller     *Controller
	DateTimeFormat string
	Locale         string
	DataSource     datasource.Source
	StorageSource  blob.Store
}

// Decision решает, допускать ли принципала. Ошибка трактуется как отказ
// с принудительным выходом: падающий гейт не должен оставить
// полуавторизованную сессию.
type Decision func(ctx context.Context, dc DecisionContext) (bool, error)

// Options — зависимости и настройки контроллера.
type Options struct {
	Enabled        bool     // аутентификация вообще включена
	Decision       Decision // nil => identity принимается без асинхронного шага
	Delegate       Delegate
	Roles          *RoleRegistry // nil => права не гейтятся
	DataSource     datasource.Source
	StorageSource  blob.Store
	DateTimeFormat string
	Locale         string
	Log            zerolog.Logger
}

// Controller — авторизационное состояние одной сессии.
// Конструируется на старте входа, переживает смены identity, умирает на
// выходе. Никаких глобалов: параллельные сессии (например, в тестах)
// друг другу не мешают.
type Controller struct {
	mu   sync.Mutex
	opts Options

	sessionID string
	epoch     uint64 // растёт на каждой смене identity

	user            *Identity
	roles           []Role
	authVerified    bool
	authLoading     bool
	initialLoading  bool
	notAllowedError error
	extra           map[string]any
}

func NewController(opts Options) *Controller {
	return &Controller{
		opts:      opts,
		sessionID: uuid.NewString(),
		// при выключенной аутентификации стартуем уже верифицированными
		authVerified:   !opts.Enabled,
		initialLoading: opts.Enabled,
	}
}

// OnIdentityChange — вход для делегата: identity сменилась (nil = выход).
//
// Каждая смена получает свою эпоху. Решающая функция работает асинхронно;
// её результат применяется только если эпоха не ушла вперёд — побеждает
// последняя смена identity, а не последняя завершившаяся проверка.
func (c *Controller) OnIdentityChange(ctx context.Context, id *Identity) {
	c.mu.Lock()
	c.epoch++
	e := c.epoch
	c.initialLoading = false

	if id == nil {
		// выход: чистим состояние, проверять нечего
		c.user = nil
		c.roles = nil
		c.notAllowedError = nil
		c.authVerified = true
		c.authLoading = false
		c.mu.Unlock()
		return
	}

	if !c.opts.Enabled || c.opts.Decision == nil {
		// без решающей функции identity принимается сразу
		c.commitLocked(id)
		c.mu.Unlock()
		return
	}

	c.authLoading = true
	c.mu.Unlock()

	go c.evaluate(ctx, e, id)
}

func (c *Controller) evaluate(ctx context.Context, epoch uint64, id *Identity) {
	ok, err := c.opts.Decision(ctx, DecisionContext{
		User:           id,
		Controller:     c,
		DateTimeFormat: c.opts.DateTimeFormat,
		Locale:         c.opts.Locale,
		DataSource:     c.opts.DataSource,
		StorageSource:  c.opts.StorageSource,
	})

	c.mu.Lock()
	if c.epoch != epoch {
		// identity уже сменилась — результат устаревшей проверки отбрасываем
		c.mu.Unlock()
		c.opts.Log.Debug().Str("session", c.sessionID).Uint64("epoch", epoch).Msg("stale auth decision dropped")
		return
	}

	forceSignOut := false
	switch {
	case err != nil:
		c.user = nil
		c.roles = nil
		c.notAllowedError = err
		forceSignOut = true
		c.opts.Log.Warn().Err(err).Str("uid", id.UID).Msg("auth decision errored, forcing sign-out")
	case !ok:
		c.user = nil
		c.roles = nil
		c.notAllowedError = ErrAccessDenied
	default:
		c.commitLocked(id)
	}
	c.authVerified = true
	c.authLoading = false
	c.mu.Unlock()

	if forceSignOut && c.opts.Delegate != nil {
		c.opts.Delegate.SignOut()
	}
}

// commitLocked принимает identity и пересчитывает эффективные роли.
func (c *Controller) commitLocked(id *Identity) {
	c.user = id
	c.notAllowedError = nil
	if c.opts.Roles != nil {
		c.roles = c.opts.Roles.Resolve(id.RoleIDs)
	} else {
		c.roles = nil
	}
	c.authVerified = true
	c.authLoading = false
}

// CanAccessMainView — производное поле, пересчитывается из примитивов
// на каждый вызов и нигде не хранится.
func (c *Controller) CanAccessMainView() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.opts.Enabled {
		return true
	}
	if c.user != nil && c.notAllowedError == nil {
		return true
	}
	if c.opts.Delegate != nil && c.opts.Delegate.LoginSkipped() {
		return true
	}
	return false
}

// Can проверяет право операции над коллекцией.
// Аутентификация выключена или роли не назначены — мягко разрешаем:
// гейт включается только присутствием ролей.
func (c *Controller) Can(op Op, collection string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.opts.Enabled {
		return true
	}
	if c.user == nil || c.notAllowedError != nil {
		return false
	}
	if len(c.roles) == 0 {
		return true
	}
	for _, r := range c.roles {
		if r.covers(collection) && r.Permissions.allows(op) {
			return true
		}
	}
	return false
}

func (c *Controller) User() *Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}

func (c *Controller) Roles() []Role {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Role, len(c.roles))
	copy(out, c.roles)
	return out
}

func (c *Controller) AuthVerified() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authVerified
}

func (c *Controller) AuthLoading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authLoading
}

func (c *Controller) InitialLoading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initialLoading
}

func (c *Controller) NotAllowedError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.notAllowedError
}

// Extra — произвольное состояние, которое решающая функция может
// оставить сессии (например, профиль из хранилища).
func (c *Controller) Extra(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.extra[key]
	return v, ok
}

func (c *Controller) SetExtra(key string, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.extra == nil {
		c.extra = map[string]any{}
	}
	c.extra[key] = v
}

// Snapshot — срез состояния для хуков пайплайнов.
func (c *Controller) Snapshot() *schema.AccessSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.user == nil {
		return nil
	}
	roleIDs := make([]string, 0, len(c.roles))
	for _, r := range c.roles {
		roleIDs = append(roleIDs, r.ID)
	}
	return &schema.AccessSnapshot{
		UserID: c.user.UID,
		Email:  c.user.Email,
		Roles:  roleIDs,
		Extra:  c.extra,
	}
}

// SessionID — идентификатор сессии контроллера (для логов).
func (c *Controller) SessionID() string { return c.sessionID }
