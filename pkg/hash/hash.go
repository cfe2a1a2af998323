package hash

import "golang.org/x/crypto/bcrypt"

// Cost is lowered by tests; production keeps the bcrypt default.
var Cost = bcrypt.DefaultCost

func HashPassword(password string) (string, error) {
	hashbytes, err := bcrypt.GenerateFromPassword([]byte(password), Cost)
	if err != nil {
		return "", err
	}

	return string(hashbytes), nil
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
