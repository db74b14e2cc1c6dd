package model

import "time"

// User is the owner of subscriptions. ID is issued by the identity provider.
type User struct {
	ID                 string    `db:"id" json:"id"`
	Email              string    `db:"email" json:"email"`
	Username           string    `db:"username" json:"username"`
	CreatedAt          time.Time `db:"created_at" json:"createdAt"`
	EmailNotifications bool      `db:"email_notifications" json:"emailNotifications"`
	Timezone           Timezone  `db:"timezone" json:"timezone"`
}
