// utils/fcm.go
package utils

import (
	"context"
	"log"
	"os"

	firebase "firebase.google.com/go"
	"firebase.google.com/go/messaging"
	"google.golang.org/api/option"
)

var fcmClient *messaging.Client

// InitFCM initializes the Firebase messaging client. Push notifications are
// optional: when no credentials file is configured the service runs without
// them and SendNotification becomes a no-op.
func InitFCM() error {
	credentialsPath := os.Getenv("FIREBASE_CREDENTIALS_FILE")
	if credentialsPath == "" {
		log.Println("⚠️  FIREBASE_CREDENTIALS_FILE not set, push notifications disabled")
		return nil
	}

	opt := option.WithCredentialsFile(credentialsPath)
	app, err := firebase.NewApp(context.Background(), nil, opt)
	if err != nil {
		return err
	}

	client, err := app.Messaging(context.Background())
	if err != nil {
		return err
	}

	fcmClient = client
	log.Println("🔥 Firebase Cloud Messaging ready")
	return nil
}

// SendNotification sends a push message to a single device token.
func SendNotification(token string, title string, body string, data map[string]string) error {
	if fcmClient == nil {
		return nil
	}

	message := &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
	}

	_, err := fcmClient.Send(context.Background(), message)
	if err != nil {
		log.Printf("Error sending push notification: %s", err)
		return err
	}
	return nil
}
