package registry

import (
	"encoding/json"
	"fmt"

	"github.com/auto-dns/container-deployer/internal/domain"
)

func marshalEtcdValue(rec domain.DeploymentRecord) (string, error) {
	b, err := json.Marshal(rec)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func unmarshalEtcdValue(key string, raw []byte) (domain.DeploymentRecord, error) {
	var rec domain.DeploymentRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return domain.DeploymentRecord{}, fmt.Errorf("decode etcd value at %s: %w", key, err)
	}
	if rec.Unit == "" || rec.Container == "" {
		return domain.DeploymentRecord{}, fmt.Errorf("incomplete deployment record at %s", key)
	}
	return rec, nil
}
