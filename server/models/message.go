package models

// Message is one entry in the shared community chat room. The sender's name
// is denormalized so the feed renders without a join & survives account
// deletion.
type Message struct {
	BaseModel
	UserID     uint   `json:"user_id" gorm:"not null"`
	SenderName string `json:"sender_name" gorm:"not null"`
	Body       string `json:"body" validate:"required" gorm:"not null"`
}

func CreateMessage(message *Message) error {
	return db.Create(message).Error
}

// FetchMessages returns one page of the room's feed, oldest first, the order
// the chat renders in.
func FetchMessages(page int) ([]Message, *Paging, error) {
	var total int64
	messages := []Message{}

	err := db.Model(&Message{}).Count(&total).Error
	if err != nil {
		return nil, nil, err
	}

	err = db.Scopes(paginate(page, MAX_PAGE_SIZE)).
		Order("messages.id asc").
		Find(&messages).Error
	if err != nil {
		return nil, nil, err
	}

	return messages, newPaging(int64(page), MAX_PAGE_SIZE, total), nil
}
