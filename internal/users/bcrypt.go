package users

import "golang.org/x/crypto/bcrypt"

// MaxPasswordBytes is the longest password bcrypt will hash.
const MaxPasswordBytes = 72

type Bcrypt struct {
	cost int
}

// NewBcrypt uses bcrypt.DefaultCost when cost is 0.
func NewBcrypt(cost int) *Bcrypt {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Bcrypt{cost: cost}
}

func (b *Bcrypt) Hash(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), b.cost)
	return string(h), err
}

func (b *Bcrypt) Compare(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
