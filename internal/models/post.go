package models

import (
	"time"

	"gorm.io/gorm"
)

// PostTopic is the fixed category a post is filed under.
type PostTopic string

const (
	TopicCS2         PostTopic = "cs2"
	TopicValorant    PostTopic = "valorant"
	TopicApex        PostTopic = "apex"
	TopicDota2       PostTopic = "dota2"
	TopicMinecraft   PostTopic = "minecraft"
	TopicFortnite    PostTopic = "fortnite"
	TopicPUBG        PostTopic = "pubg"
	TopicGTA5        PostTopic = "gta5"
	TopicWitcher     PostTopic = "witcher"
	TopicAtomicHeart PostTopic = "atomic_heart"
	TopicOtherGames  PostTopic = "other_games"
	TopicNonGame     PostTopic = "non_game"
)

// TopicLabels maps every valid topic to its display label, in menu order.
var TopicLabels = []struct {
	Topic PostTopic
	Label string
}{
	{TopicCS2, "CS2"},
	{TopicValorant, "Valorant"},
	{TopicApex, "Apex Legends"},
	{TopicDota2, "Dota 2"},
	{TopicMinecraft, "Minecraft"},
	{TopicFortnite, "Fortnite"},
	{TopicPUBG, "PUBG"},
	{TopicGTA5, "GTA 5"},
	{TopicWitcher, "The Witcher"},
	{TopicAtomicHeart, "Atomic Heart"},
	{TopicOtherGames, "Other Games"},
	{TopicNonGame, "Non Game Activity"},
}

// ValidTopic reports whether s is one of the fixed topic codes.
func ValidTopic(s string) bool {
	for _, t := range TopicLabels {
		if string(t.Topic) == s {
			return true
		}
	}
	return false
}

// TopicLabel returns the display label for a topic, or "" if unknown.
func TopicLabel(t PostTopic) string {
	for _, e := range TopicLabels {
		if e.Topic == t {
			return e.Label
		}
	}
	return ""
}

// Post represents a feed post. Deletion is a visibility flag; rows are never
// removed so comments and likes keep valid references.
type Post struct {
	gorm.Model
	AuthorID  uint      `gorm:"not null;index"`
	Content   string    `gorm:"not null"`
	ImageURL  string    `gorm:"size:512"`
	Topic     PostTopic `gorm:"type:varchar(32);not null;default:'non_game';index"`
	IsDeleted bool      `gorm:"not null;default:false;index"`

	Author   User      `gorm:"foreignKey:AuthorID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Comments []Comment `gorm:"foreignKey:PostID"`
	Likes    []Like    `gorm:"foreignKey:PostID"`
}

// Comment represents a comment on a post. Soft-deleted, never hard-deleted.
type Comment struct {
	gorm.Model
	PostID        uint   `gorm:"not null;index"`
	AuthorID      uint   `gorm:"not null;index"`
	Content       string `gorm:"not null"`
	AttachmentURL string `gorm:"size:512"`
	IsDeleted     bool   `gorm:"not null;default:false"`

	Author User `gorm:"foreignKey:AuthorID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

// Like marks that a user liked a post. The composite primary key makes the
// (post, user) pair unique; existence of the row means "liked".
type Like struct {
	PostID    uint `gorm:"primaryKey"`
	UserID    uint `gorm:"primaryKey"`
	CreatedAt time.Time

	User User `gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}
