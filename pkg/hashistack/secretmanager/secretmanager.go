package secretmanager

import (
	"os"
	"time"

	vault "github.com/hashicorp/vault-client-go"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("secretmanager", fx.Provide(ProvideVault))

// ProvideVault builds a client from the VAULT_* environment. Without
// VAULT_ADDR it returns nil; the database, redis and embedding credentials
// then come from config alone.
func ProvideVault() (*vault.Client, error) {
	addr := os.Getenv("VAULT_ADDR")
	if addr == "" {
		return nil, nil
	}

	client, err := vault.New(
		vault.WithEnvironment(),
		vault.WithRequestTimeout(10*time.Second),
	)
	if err != nil {
		return nil, err
	}

	zap.L().Info("vault secrets enabled", zap.String("addr", addr))
	return client, nil
}
