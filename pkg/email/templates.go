package email

import (
	"fmt"

	"github.com/BarunKrMishra/devops-ai-platform-sub000/internal/domain"
)

// OneTimeCodeTemplate renders the verification-code email. The code is
// the payload; everything else is minimal chrome.
func OneTimeCodeTemplate(code string, purpose domain.CodePurpose) string {
	action := "verify your sign-in"
	switch purpose {
	case domain.CodePurposeSignup:
		action = "finish creating your account"
	case domain.CodePurposePasswordReset:
		action = "reset your password"
	}

	return fmt.Sprintf(`
<!DOCTYPE html>
<html>
<body style="margin: 0; padding: 0; font-family: Arial, sans-serif; background-color: #f4f4f4;">
    <table role="presentation" style="width: 100%%; border-collapse: collapse;">
        <tr>
            <td align="center" style="padding: 40px 0;">
                <table role="presentation" style="width: 480px; border-collapse: collapse; background-color: #ffffff; border-radius: 8px;">
                    <tr>
                        <td style="padding: 32px 30px;">
                            <p style="margin: 0 0 16px; font-size: 16px; color: #333333;">
                                Use this code to %s:
                            </p>
                            <p style="margin: 0 0 16px; font-size: 32px; font-weight: bold; letter-spacing: 8px; color: #111827; text-align: center;">
                                %s
                            </p>
                            <p style="margin: 0; font-size: 14px; color: #666666;">
                                The code expires in 10 minutes. If you didn't request it, you can ignore this email.
                            </p>
                        </td>
                    </tr>
                </table>
            </td>
        </tr>
    </table>
</body>
</html>
`, action, code)
}

// WelcomeTemplate renders the post-activation welcome email.
func WelcomeTemplate() string {
	return `
<!DOCTYPE html>
<html>
<body style="margin: 0; padding: 0; font-family: Arial, sans-serif; background-color: #f4f4f4;">
    <table role="presentation" style="width: 100%; border-collapse: collapse;">
        <tr>
            <td align="center" style="padding: 40px 0;">
                <table role="presentation" style="width: 480px; border-collapse: collapse; background-color: #ffffff; border-radius: 8px;">
                    <tr>
                        <td style="padding: 32px 30px;">
                            <h1 style="margin: 0 0 16px; font-size: 22px; color: #111827;">Your account is ready</h1>
                            <p style="margin: 0; font-size: 15px; color: #333333;">
                                Verification is complete and you can sign in to the DevOps Console.
                                Connect your cloud and source-control providers from the integrations page to get started.
                            </p>
                        </td>
                    </tr>
                </table>
            </td>
        </tr>
    </table>
</body>
</html>
`
}
