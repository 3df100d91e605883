package models

// Room is one bookable teaching space.
type Room struct {
	ID         string `db:"id" json:"id"`
	BuildingID string `db:"building_id" json:"building_id"`
	Name       string `db:"name" json:"name"`
	Capacity   int    `db:"capacity" json:"capacity"`
	RoomType   string `db:"room_type" json:"room_type"`
}
