package redisstore

import (
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/aslmarket/aslmatch/internal/apperr"
)

// redisErr wraps a command error with the failing operation. Anything that
// is not an error reply from the server is transient: dial and read
// failures, pool timeouts, a closed client, deadlines. So are the replies
// Redis sends while loading or failing over.
func redisErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var reply redis.Error
	if !errors.As(err, &reply) || retryableReply(err) {
		return apperr.Transient(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func retryableReply(err error) bool {
	for _, prefix := range []string{"LOADING", "BUSY", "TRYAGAIN", "CLUSTERDOWN", "MASTERDOWN", "READONLY"} {
		if redis.HasErrorPrefix(err, prefix) {
			return true
		}
	}
	return false
}
