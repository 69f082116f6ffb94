package hub

import (
	"sort"

	"github.com/cwrk-planet/realtime-service/internal/domain"

	"github.com/samber/lo"
)

// directory — Room Directory: room -> members и обратный индекс conn -> rooms.
// Не потокобезопасен: принадлежит горутине Hub.
type directory struct {
	reg    *registry
	rooms  map[domain.RoomKey]map[string]struct{}
	byConn map[string]map[domain.RoomKey]struct{}
}

func newDirectory(reg *registry) *directory {
	return &directory{
		reg:    reg,
		rooms:  make(map[domain.RoomKey]map[string]struct{}),
		byConn: make(map[string]map[domain.RoomKey]struct{}),
	}
}

// join идемпотентен; неизвестное соединение — ошибка, а не no-op.
func (d *directory) join(room domain.RoomKey, connID string) error {
	if _, err := d.reg.lookup(connID); err != nil {
		return err
	}

	members, ok := d.rooms[room]
	if !ok {
		members = make(map[string]struct{})
		d.rooms[room] = members
	}
	members[connID] = struct{}{}

	rooms, ok := d.byConn[connID]
	if !ok {
		rooms = make(map[domain.RoomKey]struct{})
		d.byConn[connID] = rooms
	}
	rooms[room] = struct{}{}
	return nil
}

func (d *directory) leave(room domain.RoomKey, connID string) {
	if members, ok := d.rooms[room]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(d.rooms, room)
		}
	}
	if rooms, ok := d.byConn[connID]; ok {
		delete(rooms, room)
		if len(rooms) == 0 {
			delete(d.byConn, connID)
		}
	}
}

// membersOf возвращает копию, а не живое представление.
func (d *directory) membersOf(room domain.RoomKey) []string {
	ids := lo.Keys(d.rooms[room])
	sort.Strings(ids)
	return ids
}

func (d *directory) roomsOf(connID string) []domain.RoomKey {
	rooms := lo.Keys(d.byConn[connID])
	sort.Slice(rooms, func(i, j int) bool { return rooms[i] < rooms[j] })
	return rooms
}

// removeEverywhere убирает соединение из всех комнат и возвращает их список.
func (d *directory) removeEverywhere(connID string) []domain.RoomKey {
	rooms := d.roomsOf(connID)
	for _, room := range rooms {
		d.leave(room, connID)
	}
	return rooms
}

func (d *directory) counts() map[domain.RoomKey]int {
	return lo.MapValues(d.rooms, func(members map[string]struct{}, _ domain.RoomKey) int {
		return len(members)
	})
}
