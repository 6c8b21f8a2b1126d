// Package routes resolves the mapping between client folders and numeric
// client identifiers from a small Postgres table. The collaborator is
// optional: with no DSN, or when a query fails, the lookup degrades to the
// configured default client id with a warning.
package routes

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// Lookup answers folder ↔ client id questions.
type Lookup struct {
	conn      *pgx.Conn
	defaultID int
	log       zerolog.Logger
}

// New connects to the routes database. Connection problems are not fatal:
// the returned Lookup simply answers with the default id.
func New(ctx context.Context, dsn string, defaultID int, log zerolog.Logger) *Lookup {
	l := &Lookup{defaultID: defaultID, log: log}
	if strings.TrimSpace(dsn) == "" {
		log.Warn().Int("default_id", defaultID).
			Msg("no routes DSN configured, using default client id")
		return l
	}
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		log.Warn().Err(err).Int("default_id", defaultID).
			Msg("routes database unavailable, using default client id")
		return l
	}
	l.conn = conn
	return l
}

// Close releases the database connection if one was established.
func (l *Lookup) Close(ctx context.Context) {
	if l.conn != nil {
		_ = l.conn.Close(ctx)
	}
}

// NormalizeFolder canonicalizes a folder path for comparison: forward
// slashes, no trailing slash, lower case. Backslashes are always converted;
// the routes table mixes Windows and POSIX deployments.
func NormalizeFolder(folder string) string {
	f := strings.ReplaceAll(strings.TrimSpace(folder), `\`, "/")
	f = strings.TrimRight(filepath.ToSlash(f), "/")
	return strings.ToLower(f)
}

// ClientID resolves the numeric client id for a folder. Unmapped folders
// and query failures fall back to the default id.
func (l *Lookup) ClientID(ctx context.Context, folder string) int {
	if l.conn == nil {
		return l.defaultID
	}
	var id int
	err := l.conn.QueryRow(ctx,
		`SELECT id_cliente FROM rutas_clientes WHERE lower(ruta) = $1`,
		NormalizeFolder(folder)).Scan(&id)
	if err != nil {
		l.log.Warn().Err(err).Str("folder", folder).Int("default_id", l.defaultID).
			Msg("route lookup failed, using default client id")
		return l.defaultID
	}
	return id
}

// Folder resolves the folder mapped to a client id. ok is false when the id
// is unmapped or the lookup is degraded.
func (l *Lookup) Folder(ctx context.Context, clientID int) (string, bool) {
	if l.conn == nil {
		return "", false
	}
	var ruta string
	err := l.conn.QueryRow(ctx,
		`SELECT ruta FROM rutas_clientes WHERE id_cliente = $1`, clientID).Scan(&ruta)
	if err != nil {
		if err != pgx.ErrNoRows {
			l.log.Warn().Err(err).Int("client_id", clientID).Msg("route lookup failed")
		}
		return "", false
	}
	return ruta, true
}
