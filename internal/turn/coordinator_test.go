package turn

import (
	"context"
	"testing"

	"github.com/medea-project/medea/internal/id"
)

type recordingKiller struct {
	killed []string
}

func (k *recordingKiller) KillSession(_ context.Context, username string) error {
	k.killed = append(k.killed, username)
	return nil
}

func TestStaticModeReturnsConfiguredServersVerbatim(t *testing.T) {
	c := NewCoordinator(Config{
		Mode:          Static,
		StaticServers: []StaticServer{{URLs: []string{"turn:example.com:3478"}, Username: "op", Credential: "secret"}},
	}, nil, nil)

	servers, err := c.IceServersFor(context.Background(), "room1", "alice")
	if err != nil {
		t.Fatalf("IceServersFor: %v", err)
	}
	if len(servers) != 1 || servers[0].Username != "op" || servers[0].Credential != "secret" {
		t.Fatalf("expected the static server verbatim, got %+v", servers)
	}
}

func TestManagedModeMintsUniqueCredentialsAndKillsOnRelease(t *testing.T) {
	killer := &recordingKiller{}
	c := NewCoordinator(Config{Mode: Managed, TurnURLs: []string{"turn:example.com:3478"}}, nil, killer)

	servers, err := c.IceServersFor(context.Background(), "room1", "alice")
	if err != nil {
		t.Fatalf("IceServersFor: %v", err)
	}
	if len(servers) != 1 || servers[0].Username == "" || servers[0].Credential == "" {
		t.Fatalf("expected a minted username/credential, got %+v", servers)
	}

	other, _ := c.IceServersFor(context.Background(), "room1", "bob")
	if other[0].Username == servers[0].Username {
		t.Fatal("expected distinct credentials per member")
	}

	c.ReleaseMember(context.Background(), "room1", "alice")
	if len(killer.killed) != 1 || killer.killed[0] != servers[0].Username {
		t.Fatalf("expected alice's credential to be killed, got %+v", killer.killed)
	}

	c.ReleaseMember(context.Background(), "room1", "alice")
	if len(killer.killed) != 1 {
		t.Fatalf("expected release to be idempotent, got %+v", killer.killed)
	}
}
