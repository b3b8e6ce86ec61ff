package repository

import (
	"context"
	"strconv"

	"botfleet/backend/internal/model"
	"botfleet/backend/internal/util"
	"botfleet/backend/pkg/redis"

	redislib "github.com/redis/go-redis/v9"
)

type CredentialRepository struct {
	redis *redis.Client
}

func NewCredentialRepository(redisClient *redis.Client) *CredentialRepository {
	return &CredentialRepository{
		redis: redisClient,
	}
}

// Create stores an already-encrypted credential. Version starts at 1.
func (r *CredentialRepository) Create(ctx context.Context, cred *model.Credential) error {
	if cred.ID == 0 {
		id, err := r.redis.Incr(ctx, redis.CredentialSequenceKey())
		if err != nil {
			return err
		}
		cred.ID = id
	}

	cred.CreatedAt = util.NowUTC()
	cred.UpdatedAt = cred.CreatedAt
	if cred.Version == 0 {
		cred.Version = 1
	}

	credIDStr := strconv.FormatInt(cred.ID, 10)

	if err := r.redis.SetJSON(ctx, redis.CredentialKey(credIDStr), cred, 0); err != nil {
		return err
	}

	if err := r.redis.SAdd(ctx, redis.ClientCredentialsKey(cred.ClientID), credIDStr); err != nil {
		return err
	}
	if err := r.redis.SAdd(ctx, redis.AllCredentialsKey(), credIDStr); err != nil {
		return err
	}

	return nil
}

// GetByID retrieves a credential by ID.
func (r *CredentialRepository) GetByID(ctx context.Context, credentialID int64) (*model.Credential, error) {
	key := redis.CredentialKey(strconv.FormatInt(credentialID, 10))
	var cred model.Credential
	err := r.redis.GetJSON(ctx, key, &cred)
	if err != nil {
		if err == redislib.Nil {
			return nil, ErrNotFound
		}
		return nil, err
	}

	cred.CreatedAt = util.ToUTC(cred.CreatedAt)
	cred.UpdatedAt = util.ToUTC(cred.UpdatedAt)
	return &cred, nil
}

// Update rewrites a credential. Callers bump Version when secret material
// changed so live sessions rebuild.
func (r *CredentialRepository) Update(ctx context.Context, cred *model.Credential) error {
	cred.UpdatedAt = util.NowUTC()
	key := redis.CredentialKey(strconv.FormatInt(cred.ID, 10))
	return r.redis.SetJSON(ctx, key, cred, 0)
}

// Delete removes a credential and its index memberships.
func (r *CredentialRepository) Delete(ctx context.Context, credentialID int64) error {
	cred, err := r.GetByID(ctx, credentialID)
	if err != nil {
		return err
	}

	credIDStr := strconv.FormatInt(credentialID, 10)

	if err := r.redis.Del(ctx, redis.CredentialKey(credIDStr)); err != nil {
		return err
	}

	r.redis.SRem(ctx, redis.ClientCredentialsKey(cred.ClientID), credIDStr)
	r.redis.SRem(ctx, redis.AllCredentialsKey(), credIDStr)

	return nil
}

// ListByClient retrieves all credentials owned by one client.
func (r *CredentialRepository) ListByClient(ctx context.Context, clientID string) ([]*model.Credential, error) {
	return r.listBySet(ctx, redis.ClientCredentialsKey(clientID))
}

// ListAll retrieves every stored credential. Used by key rotation.
func (r *CredentialRepository) ListAll(ctx context.Context) ([]*model.Credential, error) {
	return r.listBySet(ctx, redis.AllCredentialsKey())
}

func (r *CredentialRepository) listBySet(ctx context.Context, setKey string) ([]*model.Credential, error) {
	credIDs, err := r.redis.SMembers(ctx, setKey)
	if err != nil {
		return nil, err
	}

	creds := make([]*model.Credential, 0, len(credIDs))
	for _, idStr := range credIDs {
		id, _ := strconv.ParseInt(idStr, 10, 64)
		cred, err := r.GetByID(ctx, id)
		if err == nil {
			creds = append(creds, cred)
		}
	}

	return creds, nil
}
