package registry

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/auto-dns/container-deployer/internal/config"
	"github.com/auto-dns/container-deployer/internal/domain"
)

type etcdClient interface {
	Get(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.GetResponse, error)
	Put(ctx context.Context, key, val string, opts ...clientv3.OpOption) (*clientv3.PutResponse, error)
	Delete(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.DeleteResponse, error)
	Grant(ctx context.Context, ttl int64) (*clientv3.LeaseGrantResponse, error)
	Txn(ctx context.Context) clientv3.Txn
	Revoke(ctx context.Context, id clientv3.LeaseID) (*clientv3.LeaseRevokeResponse, error)
	Close() error
}

type heldLease struct {
	lockKey string
	lease   clientv3.LeaseID
}

type EtcdRegistry struct {
	client   etcdClient
	cfg      *config.EtcdConfig
	hostname string
	logger   zerolog.Logger
	now      func() time.Time
}

func NewEtcdRegistry(client etcdClient, cfg *config.EtcdConfig, hostname string, logger zerolog.Logger) *EtcdRegistry {
	return &EtcdRegistry{
		client:   client,
		cfg:      cfg,
		hostname: hostname,
		logger:   logger.With().Str("component", "etcd_registry").Logger(),
		now:      time.Now,
	}
}

// NewEtcdClient dials the configured endpoints.
func NewEtcdClient(cfg *config.EtcdConfig) (*clientv3.Client, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: seconds(cfg.DialTimeout),
	})
	if err != nil {
		return nil, domain.NewConnectionError("etcd", err)
	}
	return cli, nil
}

// Record stores one deployment record per deploy outcome in the report,
// replacing the records of previous runs.
func (er *EtcdRegistry) Record(ctx context.Context, report *domain.UnitReport) error {
	deployedAt := er.now().UTC()
	for _, o := range report.Outcomes {
		rec := domain.DeploymentRecord{
			Unit:       report.Unit,
			Container:  o.Container,
			Image:      o.Image,
			Result:     o.Result,
			Hostname:   er.hostname,
			DeployedAt: deployedAt,
		}
		if o.Err != nil {
			rec.Error = o.Err.Error()
		}
		value, err := marshalEtcdValue(rec)
		if err != nil {
			return err
		}
		key := recordKey(er.cfg.PathPrefix, report.Unit, o.Container)
		if _, err := er.client.Put(ctx, key, value); err != nil {
			return fmt.Errorf("put %s: %w", key, err)
		}
		er.logger.Debug().Str("key", key).Str("result", string(o.Result)).Msg("Recorded deployment")
	}
	return nil
}

// List retrieves all deployment records under the configured prefix, sorted by unit then container.
func (er *EtcdRegistry) List(ctx context.Context) ([]domain.DeploymentRecord, error) {
	resp, err := er.client.Get(ctx, unitsPrefix(er.cfg.PathPrefix), clientv3.WithPrefix())
	if err != nil {
		return nil, err
	}
	var records []domain.DeploymentRecord
	for _, kv := range resp.Kvs {
		rec, err := unmarshalEtcdValue(string(kv.Key), kv.Value)
		if err != nil {
			er.logger.Error().Err(err).Msg("Failed to parse deployment record")
			continue
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].Unit != records[j].Unit {
			return records[i].Unit < records[j].Unit
		}
		return records[i].Container < records[j].Container
	})
	return records, nil
}

// LockTransaction acquires a lease-backed lock on every key, runs fn, and
// releases the locks in reverse order. Locks expire with their lease if the
// process dies while holding them.
func (er *EtcdRegistry) LockTransaction(ctx context.Context, keys []string, fn func() error) error {
	var leases []heldLease
	defer func() {
		for i := len(leases) - 1; i >= 0; i-- {
			er.release(leases[i])
		}
	}()

	for _, key := range keys {
		held, err := er.acquire(ctx, key)
		if err != nil {
			return err
		}
		leases = append(leases, held)
	}

	return fn()
}

func (er *EtcdRegistry) acquire(ctx context.Context, key string) (heldLease, error) {
	lk := lockKey(er.cfg.PathPrefix, key)
	leaseResp, err := er.client.Grant(ctx, int64(er.cfg.LockTTL))
	if err != nil {
		return heldLease{}, fmt.Errorf("failed to create lease: %w", err)
	}

	deadline := er.now().Add(seconds(er.cfg.LockTimeout))
	for {
		txnResp, err := er.client.Txn(ctx).
			If(clientv3.Compare(clientv3.CreateRevision(lk), "=", 0)).
			Then(clientv3.OpPut(lk, er.hostname, clientv3.WithLease(leaseResp.ID))).
			Commit()
		if err != nil {
			er.revoke(leaseResp.ID, lk)
			return heldLease{}, err
		}
		if txnResp.Succeeded {
			er.logger.Debug().Str("lock", lk).Msg("Acquired lock")
			return heldLease{lockKey: lk, lease: leaseResp.ID}, nil
		}
		if !er.now().Before(deadline) {
			er.revoke(leaseResp.ID, lk)
			return heldLease{}, domain.NewLockError(key)
		}
		select {
		case <-ctx.Done():
			er.revoke(leaseResp.ID, lk)
			return heldLease{}, ctx.Err()
		case <-time.After(seconds(er.cfg.LockRetryInterval)):
		}
	}
}

// release uses a fresh context so locks are dropped even after cancellation.
func (er *EtcdRegistry) release(l heldLease) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := er.client.Delete(ctx, l.lockKey); err != nil {
		er.logger.Warn().Err(err).Msgf("failed to delete lock key %s", l.lockKey)
	}
	if _, err := er.client.Revoke(ctx, l.lease); err != nil {
		er.logger.Warn().Err(err).Msgf("failed to revoke lease for %s", l.lockKey)
	}
}

func (er *EtcdRegistry) revoke(id clientv3.LeaseID, lk string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := er.client.Revoke(ctx, id); err != nil {
		er.logger.Warn().Err(err).Msgf("failed to revoke lease for %s", lk)
	}
}

func (er *EtcdRegistry) Close() error {
	return er.client.Close()
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
