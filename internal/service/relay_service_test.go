package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/therapy-api/internal/access"
	"github.com/noah-isme/therapy-api/internal/dto"
)

func newTestRelayClient(svc *relayService, principal access.Principal) *relayClient {
	return &relayClient{
		send:    make(chan dto.RelayServerFrame, relaySendBufferSize),
		options: RelayConnectionOptions{Principal: principal, Context: context.Background()},
		service: svc,
		closed:  make(chan struct{}),
	}
}

func nextFrame(t *testing.T, client *relayClient) dto.RelayServerFrame {
	t.Helper()
	select {
	case frame := <-client.send:
		return frame
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for relay frame")
		return dto.RelayServerFrame{}
	}
}

func requireNoFrame(t *testing.T, client *relayClient) {
	t.Helper()
	select {
	case frame := <-client.send:
		t.Fatalf("unexpected relay frame %+v", frame)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRelayAuthorizeRoom(t *testing.T) {
	env := newTestEnv(t)
	svc := NewRelayService(env.students, RelayFanout{}, testLogger()).(*relayService)

	parent := env.principal(t, access.RoleParent)
	stranger := env.principal(t, access.RoleParent)
	therapist := env.principal(t, access.RoleTherapist)
	admin := env.principal(t, access.RoleSystemAdmin)
	student := env.student(t, parent, &therapist)
	studentRoom := "student:" + student.ID.String()

	cases := []struct {
		name      string
		principal access.Principal
		room      string
		err       error
	}{
		{name: "parent of student", principal: parent, room: studentRoom},
		{name: "primary therapist", principal: therapist, room: studentRoom},
		{name: "unrelated parent", principal: stranger, room: studentRoom, err: ErrRoomForbidden},
		{name: "unknown student", principal: parent, room: "student:" + uuid.NewString(), err: ErrRoomForbidden},
		{name: "own user room", principal: stranger, room: "user:" + stranger.UserID.String()},
		{name: "foreign user room", principal: stranger, room: "user:" + parent.UserID.String(), err: ErrRoomForbidden},
		{name: "admin any room", principal: admin, room: "user:" + parent.UserID.String()},
		{name: "unknown namespace", principal: admin, room: "school:" + uuid.NewString(), err: ErrRoomInvalid},
		{name: "malformed id", principal: admin, room: "student:abc", err: ErrRoomInvalid},
		{name: "empty room", principal: parent, room: "", err: ErrRoomInvalid},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := svc.authorizeRoom(context.Background(), tc.principal, tc.room)
			if tc.err == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.err)
		})
	}
}

func TestRelayRoomMessaging(t *testing.T) {
	env := newTestEnv(t)
	svc := NewRelayService(env.students, RelayFanout{}, testLogger()).(*relayService)

	parent := env.principal(t, access.RoleParent)
	therapist := env.principal(t, access.RoleTherapist)
	student := env.student(t, parent, &therapist)
	room := "student:" + student.ID.String()

	parentClient := newTestRelayClient(svc, parent)
	therapistClient := newTestRelayClient(svc, therapist)

	svc.handleFrame(therapistClient, dto.RelayClientFrame{Event: dto.RelayEventSendMessage, RoomID: room, Message: json.RawMessage(`"hi"`)})
	frame := nextFrame(t, therapistClient)
	require.Equal(t, dto.RelayEventError, frame.Event)
	require.Equal(t, ErrNotRoomMember.Error(), frame.Error)

	for _, client := range []*relayClient{parentClient, therapistClient} {
		svc.handleFrame(client, dto.RelayClientFrame{Event: dto.RelayEventJoinRoom, RoomID: room})
		joined := nextFrame(t, client)
		require.Equal(t, dto.RelayEventJoined, joined.Event)
		require.Equal(t, room, joined.RoomID)
	}

	svc.handleFrame(therapistClient, dto.RelayClientFrame{
		Event:   dto.RelayEventSendMessage,
		RoomID:  room,
		Message: json.RawMessage(`{"text":"<b>Great</b> session<script>alert(1)</script>","tags":["<i>calm</i>"],"score":3}`),
	})

	for _, client := range []*relayClient{parentClient, therapistClient} {
		message := nextFrame(t, client)
		require.Equal(t, dto.RelayEventNewMessage, message.Event)
		require.Equal(t, therapist.UserID, *message.SenderID)
		require.NotNil(t, message.SentAt)

		body, ok := message.Message.(map[string]interface{})
		require.True(t, ok)
		require.Equal(t, "Great session", body["text"])
		require.Equal(t, []interface{}{"calm"}, body["tags"])
		require.Equal(t, float64(3), body["score"])
	}

	svc.handleFrame(parentClient, dto.RelayClientFrame{Event: dto.RelayEventSendMessage, RoomID: room, Message: json.RawMessage(`null`)})
	require.Equal(t, dto.RelayEventError, nextFrame(t, parentClient).Event)
	requireNoFrame(t, therapistClient)

	svc.handleFrame(parentClient, dto.RelayClientFrame{Event: "typing", RoomID: room})
	require.Equal(t, "unknown event", nextFrame(t, parentClient).Error)

	svc.handleFrame(parentClient, dto.RelayClientFrame{Event: dto.RelayEventLeaveRoom, RoomID: room})
	require.Equal(t, dto.RelayEventLeft, nextFrame(t, parentClient).Event)

	svc.handleFrame(therapistClient, dto.RelayClientFrame{Event: dto.RelayEventSendMessage, RoomID: room, Message: json.RawMessage(`"bye"`)})
	require.Equal(t, "bye", nextFrame(t, therapistClient).Message)
	requireNoFrame(t, parentClient)

	stranger := newTestRelayClient(svc, env.principal(t, access.RoleParent))
	svc.handleFrame(stranger, dto.RelayClientFrame{Event: dto.RelayEventJoinRoom, RoomID: room})
	require.Equal(t, ErrRoomForbidden.Error(), nextFrame(t, stranger).Error)
	require.False(t, svc.hub.member(stranger, room))
}

func TestRelayFanoutAcrossNodes(t *testing.T) {
	mini := miniredis.RunT(t)
	newClient := func() *redis.Client {
		client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
		t.Cleanup(func() { _ = client.Close() })
		return client
	}

	env := newTestEnv(t)
	const channel = "therapy:relay"
	first := NewRelayService(env.students, RelayFanout{Redis: newClient(), Channel: channel}, testLogger()).(*relayService)
	second := NewRelayService(env.students, RelayFanout{Redis: newClient(), Channel: channel}, testLogger()).(*relayService)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	first.Start(ctx)
	second.Start(ctx)

	probe := newClient()
	require.Eventually(t, func() bool {
		counts, err := probe.PubSubNumSub(ctx, channel).Result()
		return err == nil && counts[channel] == 2
	}, 2*time.Second, 20*time.Millisecond)

	parent := env.principal(t, access.RoleParent)
	therapist := env.principal(t, access.RoleTherapist)
	student := env.student(t, parent, &therapist)
	room := "student:" + student.ID.String()

	sender := newTestRelayClient(first, therapist)
	receiver := newTestRelayClient(second, parent)
	first.handleFrame(sender, dto.RelayClientFrame{Event: dto.RelayEventJoinRoom, RoomID: room})
	second.handleFrame(receiver, dto.RelayClientFrame{Event: dto.RelayEventJoinRoom, RoomID: room})
	nextFrame(t, sender)
	nextFrame(t, receiver)

	first.handleFrame(sender, dto.RelayClientFrame{Event: dto.RelayEventSendMessage, RoomID: room, Message: json.RawMessage(`{"text":"from node one"}`)})

	local := nextFrame(t, sender)
	require.Equal(t, dto.RelayEventNewMessage, local.Event)

	remote := nextFrame(t, receiver)
	require.Equal(t, dto.RelayEventNewMessage, remote.Event)
	require.Equal(t, room, remote.RoomID)
	require.Equal(t, therapist.UserID, *remote.SenderID)
	require.Equal(t, map[string]interface{}{"text": "from node one"}, remote.Message)

	requireNoFrame(t, sender)
}
