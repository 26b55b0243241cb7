package adapter

import (
	"encoding/base64"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/yanun0323/errors"
)

// Multi-step adapters persist their protocol position inside the order's
// correlation id as "<system>:<command>:<base64(json)>". The payload carries
// a version field so shape changes across deployments fail loudly instead of
// decoding garbage.

func encodeCorrelation(prefix string, payload any) (string, error) {
	raw, err := sonic.Marshal(payload)
	if err != nil {
		return "", errors.Wrap(err, "marshal correlation payload")
	}

	return prefix + base64.StdEncoding.EncodeToString(raw), nil
}

func decodeCorrelation(correlationID, prefix string, payload any) error {
	if !strings.HasPrefix(correlationID, prefix) {
		return errors.Errorf("correlation id missing prefix %q", prefix)
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(correlationID, prefix))
	if err != nil {
		return errors.Wrap(err, "decode correlation payload")
	}

	if err := sonic.Unmarshal(raw, payload); err != nil {
		return errors.Wrap(err, "unmarshal correlation payload")
	}

	return nil
}
