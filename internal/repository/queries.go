package repository

func upsertUserQuery(u User) (string, []any) {
	return `INSERT INTO users (provider, provider_user_id, name, picture_url) VALUES ($1, $2, $3, $4)
ON CONFLICT (provider, provider_user_id) DO UPDATE SET
	name = EXCLUDED.name,
	picture_url = EXCLUDED.picture_url,
	updated_at = NOW()`, []any{u.Provider, u.ProviderUserID, u.Name, u.PictureURL}
}

func getUserQuery(provider, providerUserID string) (string, []any) {
	return `SELECT id, provider, provider_user_id, name, picture_url, created_at, updated_at FROM users
WHERE provider = $1 AND provider_user_id = $2`, []any{provider, providerUserID}
}
