package notify

import (
	"fmt"

	"github.com/yuzuhara/seatbook/internal/domain"
)

const timeLayout = "2006/01/02 15:04"

func confirmationEmail(res *domain.Reservation) Email {
	start := res.StartTime.Format(timeLayout)
	end := res.EndTime.Format(timeLayout)

	text := fmt.Sprintf(`%s 様

この度はご予約いただき、ありがとうございます。
以下の内容で予約が確定しました。

■ 予約番号
%s

■ 予約内容
日時: %s 〜 %s
席: %s席
料金: %d円

■ お支払い
店舗にてQRコード決済または現金でお支払いください。

■ キャンセルポリシー
ご予約のキャンセルは利用開始時間の24時間前まで可能です。
キャンセルは予約履歴ページから行うことができます。
`, res.UserName, res.Number, start, end, res.SeatID, res.Price)

	html := fmt.Sprintf(`<p>%s 様</p>
<p>この度はご予約いただき、ありがとうございます。以下の内容で予約が確定しました。</p>
<h2>予約番号</h2>
<p style="font-size: 24px; font-weight: bold;">%s</p>
<h3>予約内容</h3>
<p><strong>日時:</strong> %s 〜 %s</p>
<p><strong>席:</strong> %s席</p>
<p><strong>料金:</strong> %d円</p>
<h3>お支払い</h3>
<p>店舗にてQRコード決済または現金でお支払いください。</p>
<h3>キャンセルポリシー</h3>
<p>ご予約のキャンセルは利用開始時間の24時間前まで可能です。</p>`,
		res.UserName, res.Number, start, end, res.SeatID, res.Price)

	return Email{
		To:      res.Email,
		Subject: fmt.Sprintf("【店舗予約システム】ご予約確定のお知らせ (#%s)", res.Number),
		Text:    text,
		HTML:    html,
	}
}

func cancellationEmail(res *domain.Reservation) Email {
	start := res.StartTime.Format(timeLayout)
	end := res.EndTime.Format(timeLayout)

	text := fmt.Sprintf(`%s 様

以下の予約がキャンセルされました。

■ 予約番号
%s

■ キャンセルした予約内容
日時: %s 〜 %s
席: %s席

またのご利用をお待ちしております。
`, res.UserName, res.Number, start, end, res.SeatID)

	html := fmt.Sprintf(`<p>%s 様</p>
<p>以下の予約がキャンセルされました。</p>
<h2>予約番号</h2>
<p style="font-size: 24px; font-weight: bold;">%s</p>
<h3>キャンセルした予約内容</h3>
<p><strong>日時:</strong> %s 〜 %s</p>
<p><strong>席:</strong> %s席</p>
<p>またのご利用をお待ちしております。</p>`,
		res.UserName, res.Number, start, end, res.SeatID)

	return Email{
		To:      res.Email,
		Subject: fmt.Sprintf("【店舗予約システム】ご予約キャンセルのお知らせ (#%s)", res.Number),
		Text:    text,
		HTML:    html,
	}
}
