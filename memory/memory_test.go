package memory

import (
	"testing"

	"github.com/meikuraledutech/chat"
	"github.com/meikuraledutech/chat/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) chat.Store {
		return New()
	})
}
