package mockidentity

import (
	"errors"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

var errUserNotFound = errors.New("user not found")

// User is an account known to the mock identity server.
type User struct {
	ID           int    `json:"id"`
	Username     string `json:"username"`
	Nickname     string `json:"nickname"`
	Email        string `json:"email"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Gender       string `json:"gender"`
	PasswordHash string `json:"-"` // never serialize
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

type userRepo struct {
	lock       sync.RWMutex
	users      map[int]*User
	usernames  map[string]int // username to user id
	nextUserID int
}

func newUserRepo() *userRepo {
	return &userRepo{
		users:      make(map[int]*User),
		usernames:  make(map[string]int),
		nextUserID: 1,
	}
}

// add stores user with a hash of password and assigns its id.
func (r *userRepo) add(user User, password string) (*User, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	if id, ok := r.usernames[user.Username]; ok {
		user.ID = id
	} else {
		user.ID = r.nextUserID
		r.nextUserID++
	}
	if user.Nickname == "" {
		user.Nickname = user.Username
	}
	user.PasswordHash = hash
	r.users[user.ID] = &user
	r.usernames[user.Username] = user.ID
	return &user, nil
}

func (r *userRepo) authenticate(username, password string) (*User, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	id, ok := r.usernames[username]
	if !ok {
		return nil, errUserNotFound
	}
	user := r.users[id]
	if !CheckPasswordHash(password, user.PasswordHash) {
		return nil, errUserNotFound
	}
	return user, nil
}

func (r *userRepo) get(id int) (*User, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return nil, errUserNotFound
	}
	return user, nil
}
