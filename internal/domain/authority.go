package domain

// Authority es la credencial de administración del pool. Mint, burn y escritura de
// records solo son posibles con un Grant vivo, que existe únicamente dentro de Authorize.
type Authority struct {
	id string
}

// NewAuthority crea la credencial identificada por id (el "issuing resource" del pool).
func NewAuthority(id string) *Authority {
	return &Authority{id: id}
}

// ID devuelve la identidad de la credencial.
func (a *Authority) ID() string { return a.id }

type grantScope struct {
	authority string
	live      bool
}

// Grant is proof that the Authority is currently held. It expires when the
// Authorize callback that produced it returns; copies expire with it.
type Grant struct {
	scope *grantScope
}

// Authorize holds the credential for the duration of fn only.
func (a *Authority) Authorize(fn func(Grant) error) error {
	scope := &grantScope{authority: a.id, live: true}
	defer func() { scope.live = false }()
	return fn(Grant{scope: scope})
}

// Live reports whether the grant is still inside its Authorize scope.
func (g Grant) Live() bool {
	return g.scope != nil && g.scope.live
}

// require falla con ErrUnauthorized si el grant expiró o lo emitió otra authority.
// authority vacío acepta cualquier grant vivo.
func (g Grant) require(authority string) error {
	if !g.Live() {
		return ErrUnauthorized
	}
	if authority != "" && g.scope.authority != authority {
		return ErrUnauthorized
	}
	return nil
}
