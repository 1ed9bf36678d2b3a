package bdd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"realtime_chat_service/internal/chat/app"
	"realtime_chat_service/internal/chat/domain"
	"realtime_chat_service/internal/chat/repository"
	"realtime_chat_service/pkg/logger"

	"github.com/cucumber/godog"
)

func TestFeatures(t *testing.T) {
	logger.Log = logger.Initialize("bdd_test", os.TempDir())

	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Paths:    []string{"./featureFiles"},
			Format:   "pretty",
			Output:   os.Stdout,
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fail()
	}
}

// InitializeScenario wires the Gherkin steps to a fresh chat world.
func InitializeScenario(s *godog.ScenarioContext) {
	s.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		world = newChatWorld()
		return ctx, nil
	})

	s.Step(`^user "([^"]*)" joins room "([^"]*)"$`, userJoinsRoom)
	s.Step(`^"([^"]*)" is notified that "([^"]*)" joined$`, userIsNotifiedJoined)
	s.Step(`^"([^"]*)" sends "([^"]*)"$`, userSendsMessage)
	s.Step(`^"([^"]*)" receives a "([^"]*)" event containing "([^"]*)"$`, userReceivesEventContaining)
	s.Step(`^"([^"]*)" edits her last message to "([^"]*)"$`, userEditsLastMessage)
	s.Step(`^"([^"]*)" deletes her last message$`, userDeletesLastMessage)
	s.Step(`^"([^"]*)" disconnects$`, userDisconnects)
	s.Step(`^"([^"]*)" is notified that "([^"]*)" left$`, userIsNotifiedLeft)
	s.Step(`^"([^"]*)" sends (\d+) messages in a burst$`, userSendsBurst)
	s.Step(`^the next message from "([^"]*)" is rejected for rate limiting$`, nextMessageRateLimited)
	s.Step(`^someone else tries to join room "([^"]*)" as "([^"]*)"$`, strangerJoinsAs)
	s.Step(`^the join is rejected as a duplicate username$`, joinRejectedDuplicate)
}

// recorder captures frames the hub writes to one connection.
type recorder struct {
	mu     sync.Mutex
	frames []string
}

func (r *recorder) WriteMessage(_ int, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, string(data))
	return nil
}

func (r *recorder) Close() error { return nil }

// waitFor polls until a frame mentions every given fragment.
func (r *recorder) waitFor(fragments ...string) error {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		r.mu.Lock()
		for _, frame := range r.frames {
			match := true
			for _, fragment := range fragments {
				if !strings.Contains(frame, fragment) {
					match = false
					break
				}
			}
			if match {
				r.mu.Unlock()
				return nil
			}
		}
		r.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	return fmt.Errorf("no frame containing %v arrived in time", fragments)
}

type chatWorld struct {
	registry *app.SessionRegistry
	rooms    *app.RoomManager
	limiter  *app.SlidingWindowLimiter
	messages *app.MessageUseCase
	hub      *app.Hub

	recorders   map[string]*recorder
	userRooms   map[string]string
	lastMessage map[string]string
	lastJoinErr error
}

var world *chatWorld

func newChatWorld() *chatWorld {
	return &chatWorld{
		registry:    app.NewSessionRegistry(),
		rooms:       app.NewRoomManager(),
		limiter:     app.NewSlidingWindowLimiter(60*time.Second, 10),
		messages:    app.NewMessageUseCase(repository.NewMemoryMessageRepository(), 1000),
		hub:         app.NewHub(64),
		recorders:   make(map[string]*recorder),
		userRooms:   make(map[string]string),
		lastMessage: make(map[string]string),
	}
}

func connID(name string) string      { return "conn-" + name }
func principalID(name string) string { return "user-" + name }

func userJoinsRoom(name, room string) error {
	ctx := context.Background()

	if _, err := world.registry.Bind(connID(name), domain.Principal{ID: principalID(name), DisplayName: name}, time.Now()); err != nil {
		return err
	}
	rec := &recorder{}
	world.hub.Register(connID(name), rec)
	world.recorders[name] = rec

	username, err := world.rooms.ValidateUsername(room, name)
	if err != nil {
		return err
	}
	world.rooms.Join(room, connID(name), username)
	world.registry.SetRoom(connID(name), room, username)
	world.userRooms[name] = room

	world.hub.Broadcast(world.rooms.MembersOf(room), domain.WSResponse{
		Action:  string(domain.EventUserJoined),
		Success: true,
		Payload: map[string]interface{}{"username": username, "message": username + " joined the chat"},
	})

	recent, err := world.messages.Recent(ctx, room, 50)
	if err != nil {
		return err
	}
	world.hub.SendTo(connID(name), domain.WSResponse{
		Action:  string(domain.EventRecentMessages),
		Success: true,
		Payload: map[string]interface{}{"messages": recent},
	})
	return nil
}

func userIsNotifiedJoined(watcher, who string) error {
	return world.recorders[watcher].waitFor(string(domain.EventUserJoined), who+" joined the chat")
}

func userSendsMessage(name, body string) error {
	ctx := context.Background()
	room := world.userRooms[name]
	if room == "" {
		return domain.ErrNotJoined
	}

	if !world.limiter.Allow(principalID(name), time.Now()) {
		return domain.ErrRateLimited
	}

	msg, err := world.messages.Append(ctx, room, principalID(name), name, body)
	if err != nil {
		return err
	}
	world.lastMessage[name] = msg.ID

	world.hub.Broadcast(world.rooms.MembersOf(room), domain.WSResponse{
		Action:  string(domain.EventMessage),
		Success: true,
		Payload: map[string]interface{}{"message": msg},
	})
	return nil
}

func userReceivesEventContaining(name, event, text string) error {
	return world.recorders[name].waitFor(`"action":"`+event+`"`, text)
}

func userEditsLastMessage(name, newBody string) error {
	room := world.userRooms[name]
	msg, err := world.messages.Edit(context.Background(), world.lastMessage[name], principalID(name), newBody)
	if err != nil {
		return err
	}
	world.hub.Broadcast(world.rooms.MembersOf(room), domain.WSResponse{
		Action:  string(domain.EventMessageEdited),
		Success: true,
		Payload: map[string]interface{}{"message": msg},
	})
	return nil
}

func userDeletesLastMessage(name string) error {
	room := world.userRooms[name]
	msg, err := world.messages.Delete(context.Background(), world.lastMessage[name], principalID(name))
	if err != nil {
		return err
	}
	world.hub.Broadcast(world.rooms.MembersOf(room), domain.WSResponse{
		Action:  string(domain.EventMessageDeleted),
		Success: true,
		Payload: map[string]interface{}{"message": msg},
	})
	return nil
}

func userDisconnects(name string) error {
	sess, ok := world.registry.Unbind(connID(name))
	if !ok {
		return fmt.Errorf("%s was not connected", name)
	}
	world.hub.Unregister(connID(name))

	room := world.userRooms[name]
	if world.rooms.Leave(room, connID(name)) {
		world.hub.Broadcast(world.rooms.MembersOf(room), domain.WSResponse{
			Action:  string(domain.EventUserLeft),
			Success: true,
			Payload: map[string]interface{}{"username": sess.DisplayName, "message": sess.DisplayName + " left the chat"},
		})
	}
	world.limiter.Forget(sess.Principal.ID)
	return nil
}

func userIsNotifiedLeft(watcher, who string) error {
	return world.recorders[watcher].waitFor(string(domain.EventUserLeft), who+" left the chat")
}

func userSendsBurst(name string, count int) error {
	for i := 0; i < count; i++ {
		if err := userSendsMessage(name, fmt.Sprintf("burst %d", i)); err != nil {
			return fmt.Errorf("message %d unexpectedly rejected: %w", i, err)
		}
	}
	return nil
}

func nextMessageRateLimited(name string) error {
	err := userSendsMessage(name, "one too many")
	if !errors.Is(err, domain.ErrRateLimited) {
		return fmt.Errorf("expected rate limit rejection, got %v", err)
	}
	return nil
}

func strangerJoinsAs(room, username string) error {
	_, world.lastJoinErr = world.rooms.ValidateUsername(room, username)
	return nil
}

func joinRejectedDuplicate() error {
	if !errors.Is(world.lastJoinErr, domain.ErrDuplicateUsername) {
		return fmt.Errorf("expected duplicate username rejection, got %v", world.lastJoinErr)
	}
	return nil
}
