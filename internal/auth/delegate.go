package auth

// Identity — текущий принципал, как его видит делегат аутентификации.
type Identity struct {
	UID         string
	Email       string
	DisplayName string
	RoleIDs     []string
	Extra       map[string]any
}

// Delegate — внешний коллаборатор аутентификации. Контроллер подписан
// только на смены identity (делегат зовёт Controller.OnIdentityChange);
// обратно ядро умеет лишь принудительный выход и чтение флага "вход пропущен".
type Delegate interface {
	SignOut()
	LoginSkipped() bool
}
